package sbiepay

import (
	"fmt"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// Field names a positional packet field.
type Field struct {
	Name     string
	Required bool
}

// Schema is the ordered field layout of one packet type.
// Required fields must lead; optional fields map positionally when present.
type Schema []Field

// Parse maps fields onto the schema. Positions beyond the schema are ignored
// and absent optional fields are left out of the result.
func (s Schema) Parse(fields []string) (map[string]string, error) {
	required := 0
	for _, f := range s {
		if f.Required {
			required++
		}
	}
	if len(fields) < required {
		return nil, fmt.Errorf("%w: got %d fields, need %d", domain.ErrMalformedPacket, len(fields), required)
	}

	out := make(map[string]string, len(s))
	for i, f := range s {
		if i >= len(fields) {
			break
		}
		out[f.Name] = fields[i]
	}
	return out, nil
}

// Values lays named values out in schema order. Missing names become empty fields.
func (s Schema) Values(values map[string]string) []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = values[f.Name]
	}
	return out
}

func withRefs(fields []Field, n int) Schema {
	s := append(Schema{}, fields...)
	for i := 1; i <= n; i++ {
		s = append(s, Field{Name: fmt.Sprintf("ref%d", i)})
	}
	return s
}

// ResponseSchema is the layout of redirect and push response packets.
var ResponseSchema = withRefs([]Field{
	{"merchant_order_number", true},
	{"atrn", true},
	{"transaction_status", true},
	{"amount", true},
	{"currency", true},
	{"pay_mode", true},
	{"other_details", true},
	{"reason_message", true},
	{"bank_code", true},
	{"bank_reference_number", true},
	{"transaction_date", true},
	{"country", true},
	{"cin", true},
	{"merchant_id", true},
	{"total_fee_gst", true},
}, 10)

// VerificationSchema is the layout of the plaintext double verification reply.
var VerificationSchema = withRefs([]Field{
	{"merchant_id", true},
	{"atrn", true},
	{"transaction_status", true},
	{"country", true},
	{"currency", true},
	{"other_details", true},
	{"merchant_order_number", true},
	{"amount", true},
	{"status_description", true},
	{"bank_code", true},
	{"bank_reference_number", true},
	{"transaction_date", true},
	{"pay_mode", true},
	{"cin", true},
	{"merchant_id_response", true},
	{"total_fee_gst", true},
}, 10)
