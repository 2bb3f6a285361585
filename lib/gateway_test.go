package lib

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// fakeStore is an in-memory table keyed by the string partition key.
type fakeStore struct {
	lock  sync.Mutex
	table string
	items map[string]map[string]ddbtypes.AttributeValue
	calls []string
	err   error
}

func newFakeStore(table string) *fakeStore {
	return &fakeStore{table: table, items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func (f *fakeStore) keyOf(avs map[string]ddbtypes.AttributeValue) string {
	return avs[KeyName(f.table)].(*ddbtypes.AttributeValueMemberS).Value
}

func (f *fakeStore) record(call string, table *string) error {
	f.calls = append(f.calls, call)
	if *table != f.table {
		return &smithy.GenericAPIError{Code: "ResourceNotFoundException", Fault: smithy.FaultClient}
	}
	return f.err
}

func (f *fakeStore) Scan(_ context.Context, input *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	err := f.record("Scan", input.TableName)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = out.Count
	return out, nil
}

func (f *fakeStore) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	err := f.record("PutItem "+f.keyOf(input.Item), input.TableName)
	if err != nil {
		return nil, err
	}
	f.items[f.keyOf(input.Item)] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeStore) GetItem(_ context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	err := f.record("GetItem "+f.keyOf(input.Key), input.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.items[f.keyOf(input.Key)]}, nil
}

func (f *fakeStore) DeleteItem(_ context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	err := f.record("DeleteItem "+f.keyOf(input.Key), input.TableName)
	if err != nil {
		return nil, err
	}
	delete(f.items, f.keyOf(input.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeStore) put(id string, fields Item) {
	item := Item{}
	for k, v := range fields {
		item[k] = v
	}
	item[KeyName(f.table)] = AttrS(id)
	avs, err := item.AttributeValues()
	if err != nil {
		panic(err)
	}
	f.items[id] = avs
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (int, http.Header, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &out)
		if err != nil {
			t.Fatalf("%s %s: %s: %s", method, path, err, w.Body.String())
		}
	}
	return w.Code, w.Header(), out
}

const toastBody = `{"fields": {"Name": {"S": "toast"}, "Carbs": {"N": "20"}, "Protein": {"N": "5"}, "Fat": {"N": "2"}}}`

func TestGatewayScanEmpty(t *testing.T) {
	store := newFakeStore(DefaultTable)
	code, header, out := doRequest(t, NewGateway(DefaultTable, store), "GET", "/foodlogtable", "")
	if code != 200 {
		t.Fatalf("got %d", code)
	}
	if header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing cors header")
	}
	want := map[string]any{"Count": 0.0, "ScannedCount": 0.0, "Items": []any{}}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", Pformat(out), Pformat(want))
	}
}

func TestGatewayCreate(t *testing.T) {
	store := newFakeStore(DefaultTable)
	gateway := NewGateway(DefaultTable, store)
	code, header, out := doRequest(t, gateway, "POST", "/foodlogtable", toastBody)
	if code != 200 {
		t.Fatalf("got %d %v", code, out)
	}
	id, _ := out["requestId"].(string)
	if id == "" || id != header.Get(requestIDHeader) {
		t.Fatalf("bad request id: %v %s", out, header.Get(requestIDHeader))
	}
	if !reflect.DeepEqual(store.calls, []string{"PutItem " + id}) {
		t.Errorf("got calls %v", store.calls)
	}
	entry, err := EntryFromAttributeValues(DefaultTable, store.items[id])
	if err != nil {
		t.Fatal(err)
	}
	want := &Entry{ID: id, Name: "toast", Carbs: 20, Protein: 5, Fat: 2}
	if !reflect.DeepEqual(entry, want) {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", Pformat(entry), Pformat(want))
	}
	code, _, out = doRequest(t, gateway, "GET", "/foodlogtable", "")
	if code != 200 || out["Count"] != 1.0 {
		t.Fatalf("got %d %v", code, out)
	}
	items := out["Items"].([]any)
	name := items[0].(map[string]any)["Name"].(map[string]any)["S"]
	if name != "toast" {
		t.Errorf("got name %v", name)
	}
}

func TestGatewayCreateIdsAreUnique(t *testing.T) {
	store := newFakeStore(DefaultTable)
	gateway := NewGateway(DefaultTable, store)
	for i := 0; i < 5; i++ {
		code, _, _ := doRequest(t, gateway, "POST", "/foodlogtable", toastBody)
		if code != 200 {
			t.Fatalf("got %d", code)
		}
	}
	if len(store.items) != 5 {
		t.Errorf("got %d items", len(store.items))
	}
}

func TestGatewayBadInput(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`{"fields": {"Name": {"S": "toast"}}}`,
		`{"fields": {"Name": {"S": "toast"}, "Carbs": {"N": "abc"}, "Protein": {"N": "5"}, "Fat": {"N": "2"}}}`,
		`{"fields": {"Name": {"S": "toast"}, "Carbs": {"N": "NaN"}, "Protein": {"N": "5"}, "Fat": {"N": "2"}}}`,
		`{"fields": {"Name": {"S": "toast"}, "Carbs": {"N": " 20"}, "Protein": {"N": "5"}, "Fat": {"N": "2"}}}`,
		`{"fields": {"Name": {"S": "toast"}, "Carbs": {"N": "1\", \"x"}, "Protein": {"N": "5"}, "Fat": {"N": "2"}}}`,
	}
	for _, body := range bodies {
		store := newFakeStore(DefaultTable)
		code, _, out := doRequest(t, NewGateway(DefaultTable, store), "POST", "/foodlogtable", body)
		if code != 400 {
			t.Errorf("%q: got %d", body, code)
		}
		if out["error"] != MessageBadInput {
			t.Errorf("%q: got %v", body, out)
		}
		if len(store.calls) != 0 {
			t.Errorf("%q: store should not be called: %v", body, store.calls)
		}
	}
}

func TestGatewayStoresNamesVerbatim(t *testing.T) {
	names := []string{
		`Mom's "best" toast`,
		`back\slash`,
		"tab\tand\nnewline",
		"crème brûlée 🍞",
	}
	for _, name := range names {
		store := newFakeStore(DefaultTable)
		body, err := json.Marshal(&EntryRequest{Fields: NewEntryFields(name, "20", "5", "2")})
		if err != nil {
			t.Fatal(err)
		}
		code, _, out := doRequest(t, NewGateway(DefaultTable, store), "POST", "/foodlogtable", string(body))
		if code != 200 {
			t.Fatalf("%q: got %d %v", name, code, out)
		}
		item := store.items[out["requestId"].(string)]
		got := item[attrName].(*ddbtypes.AttributeValueMemberS).Value
		if got != name {
			t.Errorf("\ngot:\n%q\nwant:\n%q\n", got, name)
		}
	}
}

func TestGatewayStoreErrors(t *testing.T) {
	type test struct {
		err     error
		code    int
		message string
	}
	tests := []test{
		{&smithy.GenericAPIError{Code: "ValidationException", Fault: smithy.FaultClient}, 400, MessageBadInput},
		{&ddbtypes.ResourceNotFoundException{}, 400, MessageBadInput},
		{&ddbtypes.InternalServerError{}, 500, MessageInternal},
		{&smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer}, 500, MessageInternal},
		{errors.New("connection reset"), 500, MessageInternal},
	}
	for _, test := range tests {
		for _, req := range [][2]string{{"GET", "/foodlogtable"}, {"POST", "/foodlogtable"}, {"GET", "/foodlogtable/abc"}, {"PUT", "/foodlogtable/abc"}, {"DELETE", "/foodlogtable/abc"}} {
			store := newFakeStore(DefaultTable)
			store.err = test.err
			code, _, out := doRequest(t, NewGateway(DefaultTable, store), req[0], req[1], toastBody)
			if code != test.code || out["error"] != test.message {
				t.Errorf("%T %s %s: got %d %v", test.err, req[0], req[1], code, out)
			}
		}
	}
}

func TestGatewayItemRoutesUseId(t *testing.T) {
	store := newFakeStore(DefaultTable)
	store.put("abc", NewEntryFields("eggs", "1", "12", "10"))
	gateway := NewGateway(DefaultTable, store)

	code, _, out := doRequest(t, gateway, "GET", "/foodlogtable/abc", "")
	if code != 200 {
		t.Fatalf("got %d", code)
	}
	name := out["Item"].(map[string]any)["Name"].(map[string]any)["S"]
	if name != "eggs" {
		t.Errorf("got %v", out)
	}

	code, _, out = doRequest(t, gateway, "PUT", "/foodlogtable/abc", toastBody)
	if code != 200 || len(out) != 0 {
		t.Fatalf("got %d %v", code, out)
	}
	entry, err := EntryFromAttributeValues(DefaultTable, store.items["abc"])
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID != "abc" || entry.Name != "toast" || entry.Calories() != 118 {
		t.Errorf("got %s", Pformat(entry))
	}

	code, _, out = doRequest(t, gateway, "DELETE", "/foodlogtable/abc", "")
	if code != 200 || len(out) != 0 {
		t.Fatalf("got %d %v", code, out)
	}
	if len(store.items) != 0 {
		t.Errorf("item not deleted")
	}

	code, _, out = doRequest(t, gateway, "GET", "/foodlogtable/abc", "")
	if code != 200 || len(out) != 0 {
		t.Errorf("missing item should be empty, got %d %v", code, out)
	}

	want := []string{"GetItem abc", "PutItem abc", "DeleteItem abc", "GetItem abc"}
	if !reflect.DeepEqual(store.calls, want) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", store.calls, want)
	}
}

func TestGatewayCorsPreflight(t *testing.T) {
	gateway := NewGateway(DefaultTable, newFakeStore(DefaultTable))
	for _, path := range []string{"/foodlogtable", "/foodlogtable/abc"} {
		code, header, _ := doRequest(t, gateway, "OPTIONS", path, "")
		if code != 204 {
			t.Errorf("%s: got %d", path, code)
		}
		if header.Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s: missing origin", path)
		}
		if !strings.Contains(header.Get("Access-Control-Allow-Methods"), "DELETE") {
			t.Errorf("%s: got methods %s", path, header.Get("Access-Control-Allow-Methods"))
		}
		if !strings.Contains(header.Get("Access-Control-Allow-Headers"), "Content-Type") {
			t.Errorf("%s: got headers %s", path, header.Get("Access-Control-Allow-Headers"))
		}
	}
}

func TestGatewayUnknownRoutes(t *testing.T) {
	gateway := NewGateway(DefaultTable, newFakeStore(DefaultTable))
	code, _, _ := doRequest(t, gateway, "PATCH", "/foodlogtable/abc", toastBody)
	if code != http.StatusMethodNotAllowed {
		t.Errorf("got %d", code)
	}
	code, _, _ = doRequest(t, gateway, "GET", "/other", "")
	if code != http.StatusNotFound {
		t.Errorf("got %d", code)
	}
}

func TestIsNumber(t *testing.T) {
	for _, s := range []string{"0", "20", "2.5", "-1", "1e3"} {
		if !isNumber(s) {
			t.Errorf("%q should be a number", s)
		}
	}
	for _, s := range []string{"", " 1", "abc", "NaN", "Inf", "1,5"} {
		if isNumber(s) {
			t.Errorf("%q should not be a number", s)
		}
	}
}
