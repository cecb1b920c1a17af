package database_test

import (
	"testing"

	"github.com/hbomb79/mediatab/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonColumn_Value(t *testing.T) {
	t.Parallel()

	col := database.NewJsonColumn(map[string]string{"filename": "a.mxf"})
	val, err := col.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"filename":"a.mxf"}`, val)
}

func TestJsonColumn_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     any
		want    map[string]string
		wantErr bool
	}{
		{name: "bytes", src: []byte(`{"a":"1"}`), want: map[string]string{"a": "1"}},
		{name: "string", src: `{"b":"2"}`, want: map[string]string{"b": "2"}},
		{name: "nil", src: nil, want: nil},
		{name: "unsupported", src: 42, wantErr: true},
		{name: "malformed", src: `{"b":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var col database.JsonColumn[map[string]string]
			err := col.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, *col.Get())
		})
	}
}
