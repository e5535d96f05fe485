package action

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockComponent struct {
	name string
}

func (m *mockComponent) Initialize(ctx context.Context) error                 { return nil }
func (m *mockComponent) Render()                                              {}
func (m *mockComponent) HandleSelection(ctx context.Context, id string) error { return nil }

func TestRegistryOpen(t *testing.T) {
	someErr := errors.New("some error")
	registry := NewRegistry(map[string]Factory{
		TagGoCardlessSelector: func(a Action) (Component, error) {
			return &mockComponent{name: a.Name}, nil
		},
		TagPlaidLogin: func(Action) (Component, error) {
			return nil, someErr
		},
	})
	registry.Register(TagStatementImport, func(Action) (Component, error) {
		return &mockComponent{name: "import"}, nil
	})

	for _, tc := range []struct {
		description string
		action      Action
		expect      Component
		expectErr   error
	}{
		{
			description: "registered tag",
			action:      Action{Tag: TagGoCardlessSelector, Name: "Select bank"},
			expect:      &mockComponent{name: "Select bank"},
		},
		{
			description: "registered after creation",
			action:      Action{Tag: TagStatementImport},
			expect:      &mockComponent{name: "import"},
		},
		{
			description: "unknown tag",
			action:      Action{Tag: TagNordigenSelector},
			expectErr:   ErrUnknownTag,
		},
		{
			description: "factory error",
			action:      Action{Tag: TagPlaidLogin},
			expectErr:   someErr,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			component, err := registry.Open(tc.action)
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.Equal(t, tc.expectErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, component)
		})
	}

	assert.Equal(t, []string{TagStatementImport, TagGoCardlessSelector, TagPlaidLogin}, registry.Tags())
}
