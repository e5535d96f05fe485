package reconcile

import (
	"context"
	"testing"

	"github.com/johnstarich/banklink/statement"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRenderer struct{}

func (failingRenderer) Start(context.Context, statement.Line) (LineView, error) {
	return LineView{}, errors.New("some error")
}

func TestPartnerPlaceholder(t *testing.T) {
	for _, tc := range []struct {
		description       string
		renderer          LineRenderer
		line              statement.Line
		expectPlaceholder string
		expectNoPartner   bool
	}{
		{
			description:       "partner name hinted",
			renderer:          FieldsRenderer{},
			line:              statement.Line{PartnerName: "Home Despot", Amount: decimal.New(-5, 0)},
			expectPlaceholder: "Home Despot",
		},
		{
			description: "no partner name",
			renderer:    FieldsRenderer{},
			line:        statement.Line{Amount: decimal.New(5, 0)},
		},
		{
			description:     "no partner field",
			renderer:        FieldsRenderer{NoPartner: true},
			line:            statement.Line{PartnerName: "Home Despot"},
			expectNoPartner: true,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			view, err := WithPartnerPlaceholder(tc.renderer).Start(context.Background(), tc.line)
			require.NoError(t, err)
			field := view.Field(PartnerField)
			if tc.expectNoPartner {
				assert.Nil(t, field)
				for _, f := range view.Fields {
					assert.Empty(t, f.Placeholder)
				}
				return
			}
			require.NotNil(t, field)
			assert.Equal(t, tc.expectPlaceholder, field.Placeholder)
			assert.Empty(t, field.Value)
		})
	}
}

func TestPartnerPlaceholderError(t *testing.T) {
	_, err := WithPartnerPlaceholder(failingRenderer{}).Start(context.Background(), statement.Line{PartnerName: "x"})
	assert.EqualError(t, err, "some error")
}

func TestFieldsRenderer(t *testing.T) {
	view, err := FieldsRenderer{}.Start(context.Background(), statement.Line{PaymentRef: "Order 42", Amount: decimal.RequireFromString("-12.5")})
	require.NoError(t, err)
	var names []string
	for _, f := range view.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{PartnerField, "account_id", "label", "amount"}, names)
	assert.Equal(t, "Order 42", view.Field("label").Value)
	assert.Equal(t, "-12.5", view.Field("amount").Value)
	assert.Nil(t, view.Field("missing"))
}
