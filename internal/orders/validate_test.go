package orders

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CreateOrderInput {
	return CreateOrderInput{
		Customer: CustomerInput{Name: "Sari", Phone: "+628123456789", Email: "sari@example.com"},
		Items:    []ItemInput{{ProductID: uuid.New(), Qty: 2}},
		Delivery: DeliveryInput{Method: DeliveryPickup},
	}
}

func TestValidateCreate_Valid(t *testing.T) {
	assert.NoError(t, validateCreate(newValidator(), validInput()))

	in := validInput()
	in.Delivery = DeliveryInput{Method: DeliveryDelivery, Address: "Jl. Melati 4", City: "Bandung"}
	assert.NoError(t, validateCreate(newValidator(), in))
}

func TestValidateCreate_Fields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
		fields []string
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = []ItemInput{} }, []string{"items"}},
		{"nil items", func(in *CreateOrderInput) { in.Items = nil }, []string{"items"}},
		{"zero qty", func(in *CreateOrderInput) { in.Items[0].Qty = 0 }, []string{"items[0].qty"}},
		{"negative qty", func(in *CreateOrderInput) { in.Items[0].Qty = -1 }, []string{"items[0].qty"}},
		{"missing product", func(in *CreateOrderInput) { in.Items[0].ProductID = uuid.Nil }, []string{"items[0].product_id"}},
		{"delivery needs address", func(in *CreateOrderInput) { in.Delivery.Method = DeliveryDelivery },
			[]string{"delivery.address", "delivery.city"}},
		{"unknown method", func(in *CreateOrderInput) { in.Delivery.Method = "drone" }, []string{"delivery.method"}},
		{"missing customer", func(in *CreateOrderInput) { in.Customer = CustomerInput{} },
			[]string{"customer.name", "customer.phone"}},
		{"bad email", func(in *CreateOrderInput) { in.Customer.Email = "nope" }, []string{"customer.email"}},
		{"negative fee", func(in *CreateOrderInput) { in.DeliveryFeeCents = -5 }, []string{"delivery_fee_cents"}},
		{"line over limit", func(in *CreateOrderInput) { in.Items[0].Qty = 1001 }, []string{"items[0].qty"}},
		{"repeated lines over limit", func(in *CreateOrderInput) {
			p := in.Items[0].ProductID
			in.Items = []ItemInput{{ProductID: p, Qty: 1000}, {ProductID: uuid.New(), Qty: 5}, {ProductID: p, Qty: 1000}}
		}, []string{"items[2].qty"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			err := validateCreate(newValidator(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tc.fields), "%v", verr.Fields)
			for _, f := range tc.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidateCreate_RepeatedLinesWithinLimit(t *testing.T) {
	in := validInput()
	p := in.Items[0].ProductID
	in.Items = []ItemInput{{ProductID: p, Qty: 600}, {ProductID: p, Qty: 400}}
	assert.NoError(t, validateCreate(newValidator(), in))
}
