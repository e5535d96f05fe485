// Package consts holds build-time constants
package consts

// Version is the release version, set at build time with -ldflags "-X github.com/johnstarich/banklink/consts.Version=v1.2.3"
var Version = "dev"
