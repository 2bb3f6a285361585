package lib

import (
	"fmt"
	"net/http"
	"strings"
)

// Routes bind each HTTP verb on the table's resources to exactly one
// DynamoDB action. The provisioner renders them as API Gateway service
// integrations and the local gateway executes them in process.

const (
	ActionScan       = "Scan"
	ActionPutItem    = "PutItem"
	ActionGetItem    = "GetItem"
	ActionDeleteItem = "DeleteItem"
)

var Actions = []string{ActionScan, ActionPutItem, ActionGetItem, ActionDeleteItem}

const (
	RouteList   = "list"
	RouteCreate = "create"
	RouteGet    = "get"
	RouteUpdate = "update"
	RouteDelete = "delete"
)

const (
	MessageBadInput = "Bad input!"
	MessageInternal = "Internal Service Error!"
)

const (
	contentTypeJSON = "application/json"
	pathParamID     = "id"
)

type Route struct {
	Name   string
	Method string
	Path   string
	Action string
}

func CollectionPath(table string) string {
	return "/" + strings.ToLower(table)
}

func ItemPath(table string) string {
	return CollectionPath(table) + "/{" + pathParamID + "}"
}

func Routes(table string) []*Route {
	return []*Route{
		{RouteList, http.MethodGet, CollectionPath(table), ActionScan},
		{RouteCreate, http.MethodPost, CollectionPath(table), ActionPutItem},
		{RouteGet, http.MethodGet, ItemPath(table), ActionGetItem},
		{RouteUpdate, http.MethodPut, ItemPath(table), ActionPutItem},
		{RouteDelete, http.MethodDelete, ItemPath(table), ActionDeleteItem},
	}
}

func (r *Route) String() string {
	return r.Method + " " + r.Path + " => " + r.Action
}

func (r *Route) HasPathID() bool {
	return strings.HasSuffix(r.Path, "/{"+pathParamID+"}")
}

// RoleName is the role API Gateway assumes for an action. Each role is
// allowed exactly that one action on the table.
func RoleName(table, action string) string {
	return fmt.Sprintf("%s-%s", table, strings.ToLower(action))
}

func RoleAllow(tableArn, action string) string {
	return fmt.Sprintf("dynamodb:%s %s", action, tableArn)
}

func IntegrationUri(region, action string) string {
	return fmt.Sprintf("arn:aws:apigateway:%s:dynamodb:action/%s", region, action)
}

// RequestTemplate is the mapping template that turns the HTTP request into
// the DynamoDB action's input.
func (r *Route) RequestTemplate(table string) string {
	tableName := `"TableName": "` + table + `"`
	switch r.Name {
	case RouteList:
		return "{\n  " + tableName + "\n}"
	case RouteCreate:
		return "{\n  " + itemTemplate(table, "$context.requestId") + ",\n  " + tableName + "\n}"
	case RouteUpdate:
		return "{\n  " + itemTemplate(table, "$method.request.path."+pathParamID) + ",\n  " + tableName + "\n}"
	case RouteGet, RouteDelete:
		return "{\n  " + keyTemplate(table) + ",\n  " + tableName + "\n}"
	default:
		panic(r.Name)
	}
}

func keyTemplate(table string) string {
	return `"Key": {` + "\n" +
		`    "` + KeyName(table) + `": {"S": "$method.request.path.` + pathParamID + `"}` + "\n" +
		`  }`
}

// stringTemplate renders a string field as a json string body. escapeJavaScript
// also escapes single quotes, which json does not allow.
func stringTemplate(field string) string {
	return `$util.escapeJavaScript($input.path('$.fields.` + field + `.S')).replaceAll("\\'", "'")`
}

// itemTemplate reads the request's typed fields, {"fields": {"Name": {"S": ..}}}.
// Numbers are pasted raw, a non number yields invalid json and a 400.
func itemTemplate(table, idExpr string) string {
	lines := []string{
		`"` + KeyName(table) + `": {"S": "` + idExpr + `"}`,
		`"` + attrName + `": {"S": "` + stringTemplate(attrName) + `"}`,
	}
	for _, name := range []string{attrCarbs, attrProtein, attrFat} {
		lines = append(lines, `"`+name+`": {"N": "$input.path('$.fields.`+name+`.N')"}`)
	}
	return `"Item": {` + "\n    " + strings.Join(lines, ",\n    ") + "\n  }"
}

// SuccessTemplate replaces the store's 200 body. Empty means passthrough.
func (r *Route) SuccessTemplate() string {
	if r.Name == RouteCreate {
		return `{"requestId": "$context.requestId"}`
	}
	return ""
}

type IntegrationResponse struct {
	SelectionPattern string
	StatusCode       int
	Template         string
}

func ErrorBody(message string) string {
	return `{"error": "` + message + `"}`
}

// ErrorResponses map store failures, by the store's HTTP status, to the
// uniform error envelope.
func ErrorResponses() []*IntegrationResponse {
	return []*IntegrationResponse{
		{`400`, http.StatusBadRequest, ErrorBody(MessageBadInput)},
		{`5\d{2}`, http.StatusInternalServerError, ErrorBody(MessageInternal)},
	}
}

var (
	CorsAllowHeaders = []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key", "Access-Control-Allow-Origin", "requestId"}
	CorsAllowMethods = []string{"OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"}
)

const CorsAllowOrigin = "*"
