package lib

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dustin/go-humanize"
	"github.com/r3labs/diff/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	infraSetTagName   = "foodlog.infraset"
	infraDefaultStage = "prod"
)

const (
	infraKeyName     = "name"
	infraKeyDynamoDB = "dynamodb"
	infraKeyApi      = "api"
)

type InfraListOutput struct {
	Account  string               `yaml:"account"`
	Region   string               `yaml:"region"`
	InfraSet map[string]*InfraSet `yaml:"infraset,omitempty"`
}

type InfraSet struct {
	Name     string                    `yaml:"name,omitempty"`
	DynamoDB map[string]*InfraDynamoDB `yaml:"dynamodb,omitempty"`
	Api      map[string]*InfraApi      `yaml:"api,omitempty"`

	// derived from api, one role per table action
	Role map[string]*InfraRole `yaml:"role,omitempty"`
}

const (
	infraKeyDynamoDBKey  = "key"
	infraKeyDynamoDBAttr = "attr"
)

type InfraDynamoDB struct {
	infraSetName string
	Key          []string `json:"key,omitempty"   yaml:"key,omitempty"`
	Attr         []string `json:"attr,omitempty"  yaml:"attr,omitempty"`
	Items        string   `json:"items,omitempty" yaml:"items,omitempty" diff:"-"`
	Size         string   `json:"size,omitempty"  yaml:"size,omitempty"  diff:"-"`
}

const (
	infraKeyApiTable = "table"
	infraKeyApiStage = "stage"
)

type InfraApi struct {
	infraSetName string
	Table        string   `json:"table,omitempty"  yaml:"table,omitempty"`
	Stage        string   `json:"stage,omitempty"  yaml:"stage,omitempty"`
	Method       []string `json:"method,omitempty" yaml:"method,omitempty"`
	Url          string   `json:"url,omitempty"    yaml:"url,omitempty"    diff:"-"`
}

type InfraRole struct {
	infraSetName string
	Allow        []string `json:"allow,omitempty" yaml:"allow,omitempty"`
}

func resolveEnvVars(s string) (string, error) {
	for _, variable := range regexp.MustCompile(`(\$\{[^\}]+})`).FindAllString(s, -1) {
		variableName := variable[2 : len(variable)-1]
		variableValue := os.Getenv(variableName)
		if variableValue == "" {
			err := fmt.Errorf("missing environment variable: %s", variableName)
			Logger.Println("error:", err)
			return "", err
		}
		s = strings.Replace(s, variable, variableValue, 1)
	}
	return s, nil
}

func infraParseValidateStrings(kind, name, key string, v interface{}) error {
	xs, ok := v.([]interface{})
	if !ok {
		err := fmt.Errorf("%s %s key %s should be type: []string, got: %#v", kind, name, key, v)
		Logger.Println("error:", err)
		return err
	}
	for _, x := range xs {
		_, ok := x.(string)
		if !ok {
			err := fmt.Errorf("%s %s key %s should be type: []string, got: %#v", kind, name, key, v)
			Logger.Println("error:", err)
			return err
		}
	}
	return nil
}

func infraParseValidateMap(kind string, val interface{}) (map[string]map[string]interface{}, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		err := fmt.Errorf("%s should be type: map[string]interface{}, got: %#v", kind, val)
		Logger.Println("error:", err)
		return nil, err
	}
	result := make(map[string]map[string]interface{})
	for name, v := range m {
		if v == nil {
			result[name] = map[string]interface{}{}
			continue
		}
		inner, ok := v.(map[string]interface{})
		if !ok {
			err := fmt.Errorf("%s should be type: map[string]interface{}, got: %s %#v", kind, name, v)
			Logger.Println("error:", err)
			return nil, err
		}
		result[name] = inner
	}
	return result, nil
}

func infraParseValidateDynamoDB(val interface{}) error {
	tables, err := infraParseValidateMap("dynamodb", val)
	if err != nil {
		return err
	}
	for name, table := range tables {
		for k, v := range table {
			switch k {
			case infraKeyDynamoDBKey, infraKeyDynamoDBAttr:
				err := infraParseValidateStrings("dynamodb", name, k, v)
				if err != nil {
					return err
				}
			default:
				err := fmt.Errorf("unknown dynamodb key: %s: %s: %v", name, k, v)
				Logger.Println("error:", err)
				return err
			}
		}
	}
	return nil
}

var infraStageRegexp = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func infraParseValidateApi(val interface{}) error {
	apis, err := infraParseValidateMap("api", val)
	if err != nil {
		return err
	}
	for name, api := range apis {
		for k, v := range api {
			switch k {
			case infraKeyApiTable, infraKeyApiStage:
				s, ok := v.(string)
				if !ok || s == "" {
					err := fmt.Errorf("api %s key %s should be a non empty string, got: %#v", name, k, v)
					Logger.Println("error:", err)
					return err
				}
				if k == infraKeyApiStage && !infraStageRegexp.MatchString(s) {
					err := fmt.Errorf("api %s stage should match %s, got: %s", name, infraStageRegexp, s)
					Logger.Println("error:", err)
					return err
				}
			default:
				err := fmt.Errorf("unknown api key: %s: %s: %v", name, k, v)
				Logger.Println("error:", err)
				return err
			}
		}
	}
	return nil
}

func InfraParse(yamlPath string) (*InfraSet, error) {
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return InfraParseBytes(data)
}

func InfraParseBytes(data []byte) (*InfraSet, error) {
	resolved, err := resolveEnvVars(string(data))
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	val := make(map[string]interface{})
	err = yaml.Unmarshal([]byte(resolved), &val)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for k, v := range val {
		switch k {
		case infraKeyName:
			s, ok := v.(string)
			if !ok || s == "" {
				err := fmt.Errorf("infraSet name cannot be empty")
				Logger.Println("error:", err)
				return nil, err
			}
		case infraKeyDynamoDB:
			err := infraParseValidateDynamoDB(v)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
		case infraKeyApi:
			err := infraParseValidateApi(v)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
		default:
			err := fmt.Errorf("unknown infra key: %s: %v", k, v)
			Logger.Println("error:", err)
			return nil, err
		}
	}
	if val[infraKeyName] == nil {
		err := fmt.Errorf("infraSet name cannot be empty")
		Logger.Println("error:", err)
		return nil, err
	}
	data, err = yaml.Marshal(val)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	infraSet := &InfraSet{}
	err = yaml.Unmarshal(data, &infraSet)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for tableName, infraDynamoDB := range infraSet.DynamoDB {
		if infraDynamoDB == nil {
			infraDynamoDB = &InfraDynamoDB{}
			infraSet.DynamoDB[tableName] = infraDynamoDB
		}
		infraDynamoDB.infraSetName = infraSet.Name
		want := []string{KeyName(tableName) + ":s:hash"}
		if strings.Join(infraDynamoDB.Key, ",") != want[0] {
			err := fmt.Errorf("dynamodb %s key should be: %v, got: %v", tableName, want, infraDynamoDB.Key)
			Logger.Println("error:", err)
			return nil, err
		}
		_, err := DynamoDBEnsureInput(infraSet.Name, tableName, infraDynamoDB.Key, infraDynamoDB.Attr)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
	}
	tables := make(map[string]string)
	for apiName, infraApi := range infraSet.Api {
		if infraApi == nil {
			infraApi = &InfraApi{}
			infraSet.Api[apiName] = infraApi
		}
		infraApi.infraSetName = infraSet.Name
		if infraApi.Stage == "" {
			infraApi.Stage = infraDefaultStage
		}
		_, ok := infraSet.DynamoDB[infraApi.Table]
		if !ok {
			err := fmt.Errorf("api %s table is not defined under dynamodb: %q", apiName, infraApi.Table)
			Logger.Println("error:", err)
			return nil, err
		}
		other, ok := tables[infraApi.Table]
		if ok {
			err := fmt.Errorf("apis %s and %s share table: %s", other, apiName, infraApi.Table)
			Logger.Println("error:", err)
			return nil, err
		}
		tables[infraApi.Table] = apiName
	}
	return infraSet, nil
}

// infraApiTables lists the tables served by an api, sorted.
func infraApiTables(infraSet *InfraSet) []string {
	var tables []string
	for _, infraApi := range infraSet.Api {
		tables = append(tables, infraApi.Table)
	}
	sort.Strings(tables)
	return tables
}

// InfraDesired fills in what InfraList would report once infraSet is
// ensured: the roles and the methods of each api.
func InfraDesired(ctx context.Context, infraSet *InfraSet) (*InfraSet, error) {
	desired := &InfraSet{
		Name:     infraSet.Name,
		DynamoDB: make(map[string]*InfraDynamoDB),
		Api:      make(map[string]*InfraApi),
		Role:     make(map[string]*InfraRole),
	}
	for tableName, infraDynamoDB := range infraSet.DynamoDB {
		desired.DynamoDB[tableName] = &InfraDynamoDB{
			infraSetName: infraSet.Name,
			Key:          infraDynamoDB.Key,
			Attr:         infraDynamoDB.Attr,
		}
	}
	for apiName, infraApi := range infraSet.Api {
		api := &InfraApi{
			infraSetName: infraSet.Name,
			Table:        infraApi.Table,
			Stage:        infraApi.Stage,
		}
		for _, path := range []string{CollectionPath(infraApi.Table), ItemPath(infraApi.Table)} {
			api.Method = append(api.Method, "OPTIONS "+path)
		}
		for _, route := range Routes(infraApi.Table) {
			api.Method = append(api.Method, route.Method+" "+route.Path)
		}
		sort.Strings(api.Method)
		desired.Api[apiName] = api
	}
	allows, err := infraRoleAllows(ctx, infraSet, DynamoDBTableArn)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for roleName, allow := range allows {
		desired.Role[roleName] = &InfraRole{
			infraSetName: infraSet.Name,
			Allow:        []string{allow},
		}
	}
	return desired, nil
}

func InfraListDynamoDB(ctx context.Context) (map[string]*InfraDynamoDB, error) {
	lock := &sync.Mutex{}
	result := make(map[string]*InfraDynamoDB)
	tableNames, err := DynamoDBListTables(ctx)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, tableName := range tableNames {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logRecover(r)
				}
			}()
			table, err := DynamoDBDescribe(ctx, tableName)
			if err != nil {
				if dynamoDBNotFound(err) {
					return nil
				}
				Logger.Println("error:", err)
				return err
			}
			tags, err := DynamoDBListTags(ctx, *table.TableArn)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			infraDynamoDB := infraDynamoDBFromTable(table, tags)
			if infraDynamoDB.infraSetName == "" {
				return nil
			}
			lock.Lock()
			result[tableName] = infraDynamoDB
			lock.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return result, nil
}

func infraDynamoDBFromTable(table *ddbtypes.TableDescription, tags []ddbtypes.Tag) *InfraDynamoDB {
	infraDynamoDB := &InfraDynamoDB{
		Key: dynamoDBKeys(table.KeySchema, table.AttributeDefinitions),
	}
	if table.BillingModeSummary == nil || table.BillingModeSummary.BillingMode == ddbtypes.BillingModeProvisioned {
		if table.ProvisionedThroughput != nil {
			infraDynamoDB.Attr = append(infraDynamoDB.Attr,
				fmt.Sprintf("read=%d", aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits)),
				fmt.Sprintf("write=%d", aws.ToInt64(table.ProvisionedThroughput.WriteCapacityUnits)),
			)
		}
	}
	infraDynamoDB.Items = humanize.Comma(aws.ToInt64(table.ItemCount))
	infraDynamoDB.Size = strings.ReplaceAll(humanize.Bytes(uint64(aws.ToInt64(table.TableSizeBytes))), " ", "")
	for _, tag := range tags {
		if aws.ToString(tag.Key) == infraSetTagName {
			infraDynamoDB.infraSetName = aws.ToString(tag.Value)
			break
		}
	}
	return infraDynamoDB
}

func InfraListRole(ctx context.Context) (map[string]*InfraRole, error) {
	roles, err := IamListRoles(ctx, "/"+apiPrincipal+"/")
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	result := make(map[string]*InfraRole)
	for _, role := range roles {
		if role.InfraSetName == "" {
			continue
		}
		result[role.Name] = &InfraRole{infraSetName: role.InfraSetName, Allow: role.Allow}
	}
	return result, nil
}

// InfraListApi reports tagged apis. An api's table is recognized by its
// collection resource among tableNames.
func InfraListApi(ctx context.Context, tableNames []string) (map[string]*InfraApi, error) {
	apis, err := ApiList(ctx)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	lock := &sync.Mutex{}
	result := make(map[string]*InfraApi)
	g, ctx := errgroup.WithContext(ctx)
	for _, api := range apis {
		infraSetName := api.Tags[infraSetTagName]
		if infraSetName == "" {
			continue
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logRecover(r)
				}
			}()
			resources, err := ApiResources(ctx, *api.Id)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			stages, err := ApiStages(ctx, *api.Id)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			infraApi := &InfraApi{
				infraSetName: infraSetName,
				Method:       ApiMethods(resources),
			}
			for _, tableName := range tableNames {
				_, ok := resources[CollectionPath(tableName)]
				if ok {
					infraApi.Table = tableName
					break
				}
			}
			if len(stages) > 0 {
				infraApi.Stage = stages[0]
				infraApi.Url = apiInvokeUrl(*api.Id, Region(), infraApi.Stage)
			}
			lock.Lock()
			result[*api.Name] = infraApi
			lock.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return result, nil
}

// InfraList reports the deployed infra sets, or just the one named by filter.
func InfraList(ctx context.Context, filter string) (*InfraListOutput, error) {
	account, err := StsAccount(ctx)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	var tables map[string]*InfraDynamoDB
	var roles map[string]*InfraRole
	var apis map[string]*InfraApi
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tables, err = InfraListDynamoDB(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = InfraListRole(gctx)
		return err
	})
	err = g.Wait()
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	var tableNames []string
	for tableName := range tables {
		tableNames = append(tableNames, tableName)
	}
	sort.Strings(tableNames)
	apis, err = InfraListApi(ctx, tableNames)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	output := &InfraListOutput{
		Account:  account,
		Region:   Region(),
		InfraSet: make(map[string]*InfraSet),
	}
	infraSet := func(name string) *InfraSet {
		set, ok := output.InfraSet[name]
		if !ok {
			set = &InfraSet{
				Name:     name,
				DynamoDB: make(map[string]*InfraDynamoDB),
				Api:      make(map[string]*InfraApi),
				Role:     make(map[string]*InfraRole),
			}
			output.InfraSet[name] = set
		}
		return set
	}
	for name, table := range tables {
		if filter == "" || table.infraSetName == filter {
			infraSet(table.infraSetName).DynamoDB[name] = table
		}
	}
	for name, role := range roles {
		if filter == "" || role.infraSetName == filter {
			infraSet(role.infraSetName).Role[name] = role
		}
	}
	for name, api := range apis {
		if filter == "" || api.infraSetName == filter {
			infraSet(api.infraSetName).Api[name] = api
		}
	}
	return output, nil
}

// InfraDiff lists the changes that would bring the deployed infra set to
// the desired one, as "create|update|delete path: from => to".
func InfraDiff(deployed, desired *InfraSet) ([]string, error) {
	if deployed == nil {
		deployed = &InfraSet{Name: desired.Name}
	}
	changelog, err := diff.Diff(deployed, desired)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	var lines []string
	for _, change := range changelog {
		lines = append(lines, fmt.Sprintf("%s %s: %v => %v", change.Type, strings.Join(change.Path, "."), infraDiffValue(change.From), infraDiffValue(change.To)))
	}
	sort.Strings(lines)
	return lines, nil
}

func infraDiffValue(v interface{}) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

func infraPreviewDiff(ctx context.Context, infraSet *InfraSet) error {
	desired, err := InfraDesired(ctx, infraSet)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	listed, err := InfraList(ctx, infraSet.Name)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	lines, err := InfraDiff(listed.InfraSet[infraSet.Name], desired)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	for _, line := range lines {
		Logger.Println(PreviewString(true)+"diff:", line)
	}
	return nil
}

func InfraEnsureDynamoDB(ctx context.Context, infraSet *InfraSet, preview bool) error {
	var tableNames []string
	for tableName := range infraSet.DynamoDB {
		tableNames = append(tableNames, tableName)
	}
	sort.Strings(tableNames)
	for _, tableName := range tableNames {
		infraDynamoDB := infraSet.DynamoDB[tableName]
		input, err := DynamoDBEnsureInput(infraSet.Name, tableName, infraDynamoDB.Key, infraDynamoDB.Attr)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		err = DynamoDBEnsure(ctx, input, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	return nil
}

// infraRoleAllows maps each role the infra set's apis assume to its one
// allow, an action on a table.
func infraRoleAllows(ctx context.Context, infraSet *InfraSet, tableArn func(context.Context, string) (string, error)) (map[string]string, error) {
	allows := make(map[string]string)
	for _, tableName := range infraApiTables(infraSet) {
		arn, err := tableArn(ctx, tableName)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		for _, action := range Actions {
			allows[RoleName(tableName, action)] = RoleAllow(arn, action)
		}
	}
	return allows, nil
}

// InfraEnsureRole ensures one role per table action, each allowed only that
// action on its table.
func InfraEnsureRole(ctx context.Context, infraSet *InfraSet, preview bool) error {
	allows, err := infraRoleAllows(ctx, infraSet, DynamoDBTableArn)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for roleName, allow := range allows {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logRecover(r)
				}
			}()
			err := IamEnsureRole(ctx, infraSet.Name, roleName, apiPrincipal, preview)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			return IamEnsureRoleAllow(ctx, roleName, allow, preview)
		})
	}
	return g.Wait()
}

func InfraEnsureApi(ctx context.Context, infraSet *InfraSet, preview bool) error {
	var apiNames []string
	for apiName := range infraSet.Api {
		apiNames = append(apiNames, apiName)
	}
	sort.Strings(apiNames)
	for _, apiName := range apiNames {
		infraApi := infraSet.Api[apiName]
		err := ApiEnsure(ctx, infraSet.Name, apiName, infraApi.Table, infraApi.Stage, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	return nil
}

func InfraEnsure(ctx context.Context, yamlPath string, preview bool) error {
	infraSet, err := InfraParse(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	if preview {
		err := infraPreviewDiff(ctx, infraSet)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	err = InfraEnsureDynamoDB(ctx, infraSet, preview)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	err = InfraEnsureRole(ctx, infraSet, preview)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	err = InfraEnsureApi(ctx, infraSet, preview)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	return nil
}

// InfraRm deletes in reverse dependency order: apis, roles, tables.
func InfraRm(ctx context.Context, yamlPath string, preview bool) error {
	infraSet, err := InfraParse(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	for apiName := range infraSet.Api {
		err := ApiDelete(ctx, apiName, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	for _, tableName := range infraApiTables(infraSet) {
		for _, action := range Actions {
			err := IamDeleteRole(ctx, RoleName(tableName, action), preview)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
		}
	}
	for tableName := range infraSet.DynamoDB {
		err := DynamoDBDeleteTable(ctx, tableName, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	return nil
}

func InfraUrlApi(ctx context.Context, yamlPath, apiName string) (string, error) {
	infraSet, err := InfraParse(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	infraApi, ok := infraSet.Api[apiName]
	if !ok {
		err := fmt.Errorf("no such api in %s: %s", yamlPath, apiName)
		Logger.Println("error:", err)
		return "", err
	}
	return ApiUrl(ctx, apiName, infraApi.Stage)
}
