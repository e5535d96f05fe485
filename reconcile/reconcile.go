// Package reconcile renders bank statement lines for reconciliation
package reconcile

import (
	"context"

	"github.com/johnstarich/banklink/statement"
)

// PartnerField is the name of a line's partner input
const PartnerField = "partner_id"

// Field is an input on a reconciliation line
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Value       string `json:"value"`
	Placeholder string `json:"placeholder,omitempty"`
}

// LineView is a statement line prepared for reconciliation
type LineView struct {
	Line   statement.Line `json:"line"`
	Fields []Field        `json:"fields"`
}

// Field returns the field named 'name', or nil if the line has no such field
func (v *LineView) Field(name string) *Field {
	for i := range v.Fields {
		if v.Fields[i].Name == name {
			return &v.Fields[i]
		}
	}
	return nil
}

// LineRenderer prepares statement lines for reconciliation
type LineRenderer interface {
	Start(ctx context.Context, line statement.Line) (LineView, error)
}

// FieldsRenderer renders a line with its counterpart inputs
type FieldsRenderer struct {
	// NoPartner omits the partner input
	NoPartner bool
}

// Start implements LineRenderer
func (r FieldsRenderer) Start(ctx context.Context, line statement.Line) (LineView, error) {
	view := LineView{Line: line}
	if !r.NoPartner {
		view.Fields = append(view.Fields, Field{Name: PartnerField, Label: "Partner"})
	}
	view.Fields = append(view.Fields,
		Field{Name: "account_id", Label: "Account"},
		Field{Name: "label", Label: "Label", Value: line.PaymentRef},
		Field{Name: "amount", Label: "Amount", Value: line.Amount.String()},
	)
	return view, nil
}

type partnerPlaceholder struct {
	LineRenderer
}

// WithPartnerPlaceholder wraps r to hint the statement line's partner name in the partner input
func WithPartnerPlaceholder(r LineRenderer) LineRenderer {
	return partnerPlaceholder{r}
}

func (p partnerPlaceholder) Start(ctx context.Context, line statement.Line) (LineView, error) {
	view, err := p.LineRenderer.Start(ctx, line)
	if err != nil {
		return view, err
	}
	if field := view.Field(PartnerField); field != nil && line.PartnerName != "" {
		field.Placeholder = line.PartnerName
	}
	return view, nil
}
