package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	lines := []Line{
		{ProductID: "p2", Name: "Notebook \"A5\"", Price: decimal.RequireFromString("45.50"), Quantity: 3},
		{ProductID: "p1", Name: "Pencil Kit", Price: decimal.NewFromInt(299), Quantity: 2},
	}

	got, err := Decode(Encode(lines))
	require.NoError(t, err)
	assertLinesEqual(t, lines, got)
	assert.True(t, TotalPrice(lines).Equal(TotalPrice(got)))
}

func TestCodec_EmptyCart(t *testing.T) {
	got, err := Decode(Encode(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    []Line
	}{
		{
			name:  "numeric price",
			input: `{"v":1,"lines":[{"id":"p1","name":"Pencil Kit","price":299,"quantity":2}]}`,
			want:  []Line{{ProductID: "p1", Name: "Pencil Kit", Price: decimal.NewFromInt(299), Quantity: 2}},
		},
		{
			name:  "unknown fields skipped",
			input: `{"v":1,"extra":{"a":[1,2]},"lines":[{"id":"p1","name":"x","price":"1.25","quantity":1,"image":"i.png"}]}`,
			want:  []Line{{ProductID: "p1", Name: "x", Price: decimal.RequireFromString("1.25"), Quantity: 1}},
		},
		{
			name:    "duplicate product",
			input:   `{"v":1,"lines":[{"id":"p1","name":"x","price":"1","quantity":1},{"id":"p1","name":"x","price":"1","quantity":2}]}`,
			wantErr: true,
		},
		{
			name:    "zero quantity",
			input:   `{"v":1,"lines":[{"id":"p1","name":"x","price":"1","quantity":0}]}`,
			wantErr: true,
		},
		{
			name:    "unknown version",
			input:   `{"v":7,"lines":[]}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   `{"v":1,"lines":[`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assertLinesEqual(t, tt.want, got)
		})
	}
}
