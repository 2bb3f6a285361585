package lib

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"
)

const (
	apiPrincipal          = "apigateway"
	apiIntegrationMethod  = "POST"
	apiAuthorizationNone  = "NONE"
	apiHeaderAllowOrigin  = "method.response.header.Access-Control-Allow-Origin"
	apiHeaderAllowHeaders = "method.response.header.Access-Control-Allow-Headers"
	apiHeaderAllowMethods = "method.response.header.Access-Control-Allow-Methods"
	apiHeaderAllowCreds   = "method.response.header.Access-Control-Allow-Credentials"
	apiPathParamID        = "method.request.path." + pathParamID
)

var apigatewayClient *apigateway.Client
var apigatewayClientLock sync.Mutex

func ApigatewayClient() *apigateway.Client {
	apigatewayClientLock.Lock()
	defer apigatewayClientLock.Unlock()
	if apigatewayClient == nil {
		apigatewayClient = apigateway.NewFromConfig(*Session())
	}
	return apigatewayClient
}

func ApiList(ctx context.Context) ([]apigwtypes.RestApi, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "ApiList"}
		d.Start()
		defer d.End()
	}
	var position *string
	var items []apigwtypes.RestApi
	for {
		out, err := ApigatewayClient().GetRestApis(ctx, &apigateway.GetRestApisInput{
			Position: position,
			Limit:    aws.Int32(500),
		})
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		items = append(items, out.Items...)
		if out.Position == nil {
			break
		}
		position = out.Position
	}
	return items, nil
}

var ErrApiNotFound = errors.New("api not found")

func Api(ctx context.Context, name string) (*apigwtypes.RestApi, error) {
	apis, err := ApiList(ctx)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	var result []apigwtypes.RestApi
	for _, api := range apis {
		if api.Name != nil && *api.Name == name {
			result = append(result, api)
		}
	}
	switch len(result) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrApiNotFound, name)
	case 1:
		return &result[0], nil
	default:
		err := fmt.Errorf("more than 1 api (%d) with name: %s", len(result), name)
		Logger.Println("error:", err)
		return nil, err
	}
}

func apiInvokeUrl(apiID, region, stage string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s", apiID, region, stage)
}

func ApiUrl(ctx context.Context, name, stage string) (string, error) {
	api, err := Api(ctx, name)
	if err != nil {
		return "", err
	}
	return apiInvokeUrl(*api.Id, Region(), stage), nil
}

func apiConflict(err error) bool {
	var conflict *apigwtypes.ConflictException
	return errors.As(err, &conflict)
}

func apiNotFound(err error) bool {
	var notFound *apigwtypes.NotFoundException
	return errors.As(err, &notFound)
}

// ApiResources maps resource path to resource id.
func ApiResources(ctx context.Context, apiID string) (map[string]apigwtypes.Resource, error) {
	var position *string
	resources := make(map[string]apigwtypes.Resource)
	for {
		out, err := ApigatewayClient().GetResources(ctx, &apigateway.GetResourcesInput{
			RestApiId: aws.String(apiID),
			Position:  position,
			Limit:     aws.Int32(500),
			Embed:     []string{"methods"},
		})
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		for _, resource := range out.Items {
			resources[*resource.Path] = resource
		}
		if out.Position == nil {
			break
		}
		position = out.Position
	}
	return resources, nil
}

// ApiMethods lists "METHOD /path" for every method of the api, sorted.
func ApiMethods(resources map[string]apigwtypes.Resource) []string {
	var methods []string
	for path, resource := range resources {
		for method := range resource.ResourceMethods {
			methods = append(methods, method+" "+path)
		}
	}
	sort.Strings(methods)
	return methods
}

func ApiStages(ctx context.Context, apiID string) ([]string, error) {
	out, err := ApigatewayClient().GetStages(ctx, &apigateway.GetStagesInput{
		RestApiId: aws.String(apiID),
	})
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	var stages []string
	for _, stage := range out.Item {
		stages = append(stages, *stage.StageName)
	}
	sort.Strings(stages)
	return stages, nil
}

func apiEnsureResource(ctx context.Context, apiID string, resources map[string]apigwtypes.Resource, path string, preview bool) (string, error) {
	resource, ok := resources[path]
	if ok {
		return *resource.Id, nil
	}
	i := strings.LastIndex(path, "/")
	parentPath, pathPart := path[:i], path[i+1:]
	if parentPath == "" {
		parentPath = "/"
	}
	parent, ok := resources[parentPath]
	if !ok {
		err := fmt.Errorf("missing parent resource: %s", parentPath)
		Logger.Println("error:", err)
		return "", err
	}
	if preview {
		Logger.Println(PreviewString(preview)+"created api resource:", path)
		return "", nil
	}
	out, err := ApigatewayClient().CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: aws.String(apiID),
		ParentId:  parent.Id,
		PathPart:  aws.String(pathPart),
	})
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	Logger.Println(PreviewString(preview)+"created api resource:", path)
	resources[path] = apigwtypes.Resource{Id: out.Id, ParentId: parent.Id, Path: aws.String(path), PathPart: out.PathPart}
	return *out.Id, nil
}

func apiPutMethod(ctx context.Context, input *apigateway.PutMethodInput, statusCodes map[string]map[string]bool) error {
	_, err := ApigatewayClient().PutMethod(ctx, input)
	if err != nil && !apiConflict(err) {
		Logger.Println("error:", err)
		return err
	}
	var codes []string
	for code := range statusCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		_, err := ApigatewayClient().PutMethodResponse(ctx, &apigateway.PutMethodResponseInput{
			RestApiId:          input.RestApiId,
			ResourceId:         input.ResourceId,
			HttpMethod:         input.HttpMethod,
			StatusCode:         aws.String(code),
			ResponseParameters: statusCodes[code],
		})
		if err != nil && !apiConflict(err) {
			Logger.Println("error:", err)
			return err
		}
	}
	return nil
}

// apiEnsureRoute binds the route's method to its DynamoDB action. Integrations
// and integration responses are overwritten on every ensure.
func apiEnsureRoute(ctx context.Context, apiID, resourceID, table string, route *Route, preview bool) error {
	roleArn, err := IamRoleArn(ctx, apiPrincipal, RoleName(table, route.Action))
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	if preview {
		Logger.Println(PreviewString(preview)+"ensured api method:", route)
		return nil
	}
	input := &apigateway.PutMethodInput{
		RestApiId:         aws.String(apiID),
		ResourceId:        aws.String(resourceID),
		HttpMethod:        aws.String(route.Method),
		AuthorizationType: aws.String(apiAuthorizationNone),
	}
	if route.HasPathID() {
		input.RequestParameters = map[string]bool{apiPathParamID: true}
	}
	statusCodes := map[string]map[string]bool{
		"200": {apiHeaderAllowOrigin: true},
	}
	for _, resp := range ErrorResponses() {
		statusCodes[strconv.Itoa(resp.StatusCode)] = nil
	}
	err = apiPutMethod(ctx, input, statusCodes)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	// a new role can take a few seconds before api gateway may assume it
	err = Retry(ctx, func() error {
		_, err := ApigatewayClient().PutIntegration(ctx, &apigateway.PutIntegrationInput{
			RestApiId:             input.RestApiId,
			ResourceId:            input.ResourceId,
			HttpMethod:            input.HttpMethod,
			Type:                  apigwtypes.IntegrationTypeAws,
			IntegrationHttpMethod: aws.String(apiIntegrationMethod),
			Uri:                   aws.String(IntegrationUri(Region(), route.Action)),
			Credentials:           aws.String(roleArn),
			PassthroughBehavior:   aws.String("WHEN_NO_TEMPLATES"),
			RequestTemplates:      map[string]string{contentTypeJSON: route.RequestTemplate(table)},
		})
		return err
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	success := &apigateway.PutIntegrationResponseInput{
		RestApiId:          input.RestApiId,
		ResourceId:         input.ResourceId,
		HttpMethod:         input.HttpMethod,
		StatusCode:         aws.String("200"),
		ResponseParameters: map[string]string{apiHeaderAllowOrigin: "'" + CorsAllowOrigin + "'"},
	}
	if template := route.SuccessTemplate(); template != "" {
		success.ResponseTemplates = map[string]string{contentTypeJSON: template}
	}
	_, err = ApigatewayClient().PutIntegrationResponse(ctx, success)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	for _, resp := range ErrorResponses() {
		_, err = ApigatewayClient().PutIntegrationResponse(ctx, &apigateway.PutIntegrationResponseInput{
			RestApiId:         input.RestApiId,
			ResourceId:        input.ResourceId,
			HttpMethod:        input.HttpMethod,
			StatusCode:        aws.String(strconv.Itoa(resp.StatusCode)),
			SelectionPattern:  aws.String(resp.SelectionPattern),
			ResponseTemplates: map[string]string{contentTypeJSON: resp.Template},
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println("ensured api method:", route)
	return nil
}

// apiEnsureCors answers OPTIONS on the resource with a mock integration.
func apiEnsureCors(ctx context.Context, apiID, resourceID, path string, preview bool) error {
	if preview {
		Logger.Println(PreviewString(preview)+"ensured api method:", corsRouteString(path))
		return nil
	}
	input := &apigateway.PutMethodInput{
		RestApiId:         aws.String(apiID),
		ResourceId:        aws.String(resourceID),
		HttpMethod:        aws.String("OPTIONS"),
		AuthorizationType: aws.String(apiAuthorizationNone),
	}
	err := apiPutMethod(ctx, input, map[string]map[string]bool{
		"204": {
			apiHeaderAllowOrigin:  true,
			apiHeaderAllowHeaders: true,
			apiHeaderAllowMethods: true,
			apiHeaderAllowCreds:   true,
		},
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	_, err = ApigatewayClient().PutIntegration(ctx, &apigateway.PutIntegrationInput{
		RestApiId:        input.RestApiId,
		ResourceId:       input.ResourceId,
		HttpMethod:       input.HttpMethod,
		Type:             apigwtypes.IntegrationTypeMock,
		RequestTemplates: map[string]string{contentTypeJSON: `{"statusCode": 200}`},
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	_, err = ApigatewayClient().PutIntegrationResponse(ctx, &apigateway.PutIntegrationResponseInput{
		RestApiId:  input.RestApiId,
		ResourceId: input.ResourceId,
		HttpMethod: input.HttpMethod,
		StatusCode: aws.String("204"),
		ResponseParameters: map[string]string{
			apiHeaderAllowOrigin:  "'" + CorsAllowOrigin + "'",
			apiHeaderAllowHeaders: "'" + strings.Join(CorsAllowHeaders, ",") + "'",
			apiHeaderAllowMethods: "'" + strings.Join(CorsAllowMethods, ",") + "'",
			apiHeaderAllowCreds:   "'true'",
		},
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	Logger.Println("ensured api method:", corsRouteString(path))
	return nil
}

func corsRouteString(path string) string {
	return "OPTIONS " + path + " => cors"
}

// ApiEnsure converges the named rest api onto the table's routes and deploys
// it to stage. The per-action roles must already exist.
func ApiEnsure(ctx context.Context, infraSetName, name, table, stage string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "ApiEnsure"}
		d.Start()
		defer d.End()
	}
	api, err := Api(ctx, name)
	if err != nil && !errors.Is(err, ErrApiNotFound) {
		Logger.Println("error:", err)
		return err
	}
	if api == nil {
		if preview {
			Logger.Println(PreviewString(preview)+"created api:", name)
			for _, route := range Routes(table) {
				Logger.Println(PreviewString(preview)+"ensured api method:", route)
			}
			return nil
		}
		tags := map[string]string{}
		if infraSetName != "" {
			tags[infraSetTagName] = infraSetName
		}
		out, err := ApigatewayClient().CreateRestApi(ctx, &apigateway.CreateRestApiInput{
			Name: aws.String(name),
			Tags: tags,
			EndpointConfiguration: &apigwtypes.EndpointConfiguration{
				Types: []apigwtypes.EndpointType{apigwtypes.EndpointTypeRegional},
			},
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		Logger.Println(PreviewString(preview)+"created api:", name)
		api = &apigwtypes.RestApi{Id: out.Id, Name: out.Name, Tags: out.Tags}
	}
	resources, err := ApiResources(ctx, *api.Id)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	resourceIDs := make(map[string]string)
	for _, path := range []string{CollectionPath(table), ItemPath(table)} {
		id, err := apiEnsureResource(ctx, *api.Id, resources, path, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		resourceIDs[path] = id
		if id == "" {
			// preview of a resource not yet created, children cannot exist
			continue
		}
		err = apiEnsureCors(ctx, *api.Id, id, path, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	for _, route := range Routes(table) {
		err := apiEnsureRoute(ctx, *api.Id, resourceIDs[route.Path], table, route, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	if !preview {
		_, err := ApigatewayClient().CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
			RestApiId: api.Id,
			StageName: aws.String(stage),
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"deployed api:", name, apiInvokeUrl(*api.Id, Region(), stage))
	return nil
}

func ApiDelete(ctx context.Context, name string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "ApiDelete"}
		d.Start()
		defer d.End()
	}
	api, err := Api(ctx, name)
	if err != nil {
		if errors.Is(err, ErrApiNotFound) {
			return nil
		}
		Logger.Println("error:", err)
		return err
	}
	if !preview {
		_, err := ApigatewayClient().DeleteRestApi(ctx, &apigateway.DeleteRestApiInput{
			RestApiId: api.Id,
		})
		if err != nil && !apiNotFound(err) {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"deleted api:", name)
	return nil
}
