package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"upspend/internal/config"
	"upspend/internal/log"
	"upspend/internal/upbank"
)

func TestParseFlags_Threshold(t *testing.T) {
	cfg := &config.Config{OtherThreshold: 0.01}

	tests := []struct {
		name    string
		args    []string
		want    float64
		wantErr bool
	}{
		{name: "default from config", want: 0.01},
		{name: "explicit", args: []string{"-threshold", "0.05"}, want: 0.05},
		{name: "zero", args: []string{"-threshold", "0"}, want: 0},
		{name: "one", args: []string{"-threshold", "1"}, wantErr: true},
		{name: "negative", args: []string{"-threshold", "-0.1"}, wantErr: true},
		{name: "not a number", args: []string{"-threshold", "NaN"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFlags("summary", tt.args, cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, f.threshold)
		})
	}
}

func TestParseFlags_CompareDefaultMode(t *testing.T) {
	cfg := &config.Config{OtherThreshold: 0.01}

	f, err := parseFlags("compare", nil, cfg)
	require.NoError(t, err)
	require.Equal(t, "month,year", f.mode)

	f, err = parseFlags("summary", nil, cfg)
	require.NoError(t, err)
	require.Equal(t, "month", f.mode)
}

func TestDirectory_LoadsDisplayNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":"takeaway","attributes":{"name":"Takeaway"},"relationships":{"parent":{"data":{"type":"categories","id":"good-life"}}}}]}`)
	}))
	defer srv.Close()
	client := upbank.New(srv.URL, "up:yeah:secret", upbank.WithHTTPClient(srv.Client()))

	dir := directory(context.Background(), log.Nop(), client)
	require.Equal(t, "Takeaway", dir.Name("takeaway"))

	offline := directory(context.Background(), log.Nop(), nil)
	require.Equal(t, "takeaway", offline.Name("takeaway"))
	require.Equal(t, "Other", offline.Name("other"))
}
