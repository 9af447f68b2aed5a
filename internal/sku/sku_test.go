package sku

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SKU
		wantErr bool
	}{
		{name: "valid", input: "Box1-AA_0001", want: SKU{Box: "Box1", BatchCode: "AA", Seq: 1}},
		{name: "multi digit box", input: "Box12-MM_0420", want: SKU{Box: "Box12", BatchCode: "MM", Seq: 420}},
		{name: "lowercase batch code", input: "Box1-aa_0001", wantErr: true},
		{name: "short sequence", input: "Box1-AA_001", wantErr: true},
		{name: "missing box number", input: "Box-AA_0001", wantErr: true},
		{name: "trailing text", input: "Box1-AA_0001_F", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, Valid(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
			assert.True(t, Valid(tt.input))
		})
	}
}
