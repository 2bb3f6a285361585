package lib

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestClientMethods(t *testing.T) {
	type seen struct {
		method      string
		path        string
		contentType string
		body        string
	}
	var got []seen
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, seen{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(body)})
		_, _ = w.Write([]byte(`{"requestId": "abc"}`))
	}))
	defer server.Close()
	ctx := context.Background()
	client := NewClient(server.URL + "/")
	body := &EntryRequest{Fields: NewEntryFields("toast", "20", "5", "2")}
	encoded, _ := json.Marshal(body)
	for _, resp := range []*Response{
		client.Get(ctx, "/foodlogtable"),
		client.Post(ctx, "/foodlogtable", body),
		client.Put(ctx, "/foodlogtable/abc", body),
		client.Patch(ctx, "/foodlogtable/abc", body),
		client.Delete(ctx, "/foodlogtable/abc", nil),
		client.Delete(ctx, "/foodlogtable/abc", body),
	} {
		if resp == nil || resp.RequestID != "abc" || resp.StatusCode != 200 {
			t.Errorf("got %v", resp)
		}
	}
	want := []seen{
		{"GET", "/foodlogtable", contentTypeJSON, ""},
		{"POST", "/foodlogtable", contentTypeJSON, string(encoded)},
		{"PUT", "/foodlogtable/abc", contentTypeJSON, string(encoded)},
		{"PATCH", "/foodlogtable/abc", contentTypeJSON, string(encoded)},
		{"DELETE", "/foodlogtable/abc", contentTypeJSON, ""},
		{"DELETE", "/foodlogtable/abc", contentTypeJSON, string(encoded)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", got, want)
	}
}

func TestClientErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		_, _ = w.Write([]byte(`{"error": "Bad input!"}`))
	}))
	defer server.Close()
	resp := NewClient(server.URL).Post(context.Background(), "/foodlogtable", struct{}{})
	if resp == nil || resp.Error != MessageBadInput || resp.StatusCode != 400 {
		t.Errorf("got %v", resp)
	}
}

func TestClientErrorStatusWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer server.Close()
	resp := NewClient(server.URL).Get(context.Background(), "/foodlogtable")
	if resp == nil || resp.Error == "" {
		t.Errorf("got %v", resp)
	}
}

func TestClientDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()
	resp := NewClient(server.URL).Get(context.Background(), "/foodlogtable")
	if resp != nil {
		t.Errorf("got %v", resp)
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	resp := NewClient(url).Get(context.Background(), "/foodlogtable")
	if resp != nil {
		t.Errorf("got %v", resp)
	}
}
