package online

import (
	"testing"

	"github.com/johnstarich/banklink/config"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	db := plaindb.NewMockDB(plaindb.MockConfig{})
	conf := config.Config{}
	conf.Server.BaseURL = "https://books.example.com/"
	conf.Online.Sandbox = true
	conf.Online.CompanyName = "Acme"

	service, err := Open(db, conf, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, service.Providers())
	assert.NotNil(t, service.Statements())
	assert.Equal(t, "https://books.example.com", service.baseURL)
	assert.True(t, service.sandbox)
	assert.Equal(t, "Acme", service.companyName)
	assert.Equal(t, "en", service.language)
}
