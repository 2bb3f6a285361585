package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid"
)

// ErrBadInput is a request the store would reject as a validation error.
var ErrBadInput = errors.New("bad input")

const requestIDHeader = "x-amzn-RequestId"

type requestIDKey struct{}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.Must(uuid.NewV4()).String()
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func withCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CorsAllowOrigin)
		next.ServeHTTP(w, r)
	})
}

func corsPreflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Headers", strings.Join(CorsAllowHeaders, ","))
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(CorsAllowMethods, ","))
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

type ScanResponse struct {
	Count        int32  `json:"Count"`
	Items        []Item `json:"Items"`
	ScannedCount int32  `json:"ScannedCount"`
}

type GetResponse struct {
	Item Item `json:"Item,omitempty"`
}

type CreateResponse struct {
	RequestID string `json:"requestId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Gateway struct {
	table string
	store DynamoDBAPI
}

// NewGateway serves the table's routes against store, translating each
// request the way its mapping template does.
func NewGateway(table string, store DynamoDBAPI) http.Handler {
	g := &Gateway{table: table, store: store}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(withRequestID)
	r.Use(withCors)
	for _, route := range Routes(table) {
		r.Method(route.Method, route.Path, g.handler(route))
	}
	r.Options(CollectionPath(table), corsPreflight)
	r.Options(ItemPath(table), corsPreflight)
	return r
}

func (g *Gateway) handler(route *Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := g.invoke(r.Context(), route, r)
		if err != nil {
			Logger.Println("error:", route, err)
			status, message := errorStatus(err)
			writeJSON(w, status, &ErrorResponse{Error: message})
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *Gateway) invoke(ctx context.Context, route *Route, r *http.Request) (any, error) {
	switch route.Name {
	case RouteList:
		out, err := g.store.Scan(ctx, &dynamodb.ScanInput{
			TableName: aws.String(g.table),
		})
		if err != nil {
			return nil, err
		}
		resp := &ScanResponse{
			Count:        out.Count,
			ScannedCount: out.ScannedCount,
			Items:        []Item{},
		}
		for _, item := range out.Items {
			resp.Items = append(resp.Items, ItemFromAttributeValues(item))
		}
		return resp, nil
	case RouteCreate:
		id := RequestID(ctx)
		err := g.put(ctx, id, r)
		if err != nil {
			return nil, err
		}
		return &CreateResponse{RequestID: id}, nil
	case RouteUpdate:
		err := g.put(ctx, chi.URLParam(r, pathParamID), r)
		if err != nil {
			return nil, err
		}
		return struct{}{}, nil
	case RouteGet:
		out, err := g.store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(g.table),
			Key:       g.key(chi.URLParam(r, pathParamID)),
		})
		if err != nil {
			return nil, err
		}
		resp := &GetResponse{}
		if out.Item != nil {
			resp.Item = ItemFromAttributeValues(out.Item)
		}
		return resp, nil
	case RouteDelete:
		_, err := g.store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(g.table),
			Key:       g.key(chi.URLParam(r, pathParamID)),
		})
		if err != nil {
			return nil, err
		}
		return struct{}{}, nil
	default:
		panic(route.Name)
	}
}

func (g *Gateway) key(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		KeyName(g.table): &ddbtypes.AttributeValueMemberS{Value: id},
	}
}

// put builds the item from the request's typed fields. Missing fields render
// as empty values, as they do in the mapping template.
func (g *Gateway) put(ctx context.Context, id string, r *http.Request) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrBadInput)
	}
	req := &EntryRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	field := func(name string) string {
		return req.Fields[name].String()
	}
	item := NewEntryFields(field(attrName), field(attrCarbs), field(attrProtein), field(attrFat))
	for _, name := range []string{attrCarbs, attrProtein, attrFat} {
		if !isNumber(field(name)) {
			return fmt.Errorf("%w: %s is not a number: %q", ErrBadInput, name, field(name))
		}
	}
	item[KeyName(g.table)] = AttrS(id)
	avs, err := item.AttributeValues()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	_, err = g.store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.table),
		Item:      avs,
	})
	return err
}

// isNumber accepts what DynamoDB accepts for an N value.
func isNumber(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// errorStatus classifies failures the way the integration responses do: the
// store's 400 becomes "Bad input!", its 5xx "Internal Service Error!".
func errorStatus(err error) (int, string) {
	if errors.Is(err, ErrBadInput) {
		return http.StatusBadRequest, MessageBadInput
	}
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		code := withStatus.HTTPStatusCode()
		if code >= 400 && code < 500 {
			return http.StatusBadRequest, MessageBadInput
		}
		return http.StatusInternalServerError, MessageInternal
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return http.StatusBadRequest, MessageBadInput
	}
	return http.StatusInternalServerError, MessageInternal
}
