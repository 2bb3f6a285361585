package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

var iamClient *iam.Client
var iamClientLock sync.Mutex

func IamClient() *iam.Client {
	iamClientLock.Lock()
	defer iamClientLock.Unlock()
	if iamClient == nil {
		iamClient = iam.NewFromConfig(*Session())
	}
	return iamClient
}

type IamAllow struct {
	Action   string
	Resource string
}

func (a *IamAllow) String() string {
	return fmt.Sprintf("%s %s", a.Action, a.Resource)
}

func (a *IamAllow) policyDocument() string {
	return `{"Version": "2012-10-17",
             "Statement": [{"Effect": "Allow",
                            "Action": "` + a.Action + `",
                            "Resource": "` + a.Resource + `"}]}`
}

func (a *IamAllow) policyName() string {
	action := strings.ReplaceAll(a.Action, "*", "ALL")
	resource := strings.ReplaceAll(a.Resource, "*", "ALL")
	var parts []string
	for _, part := range strings.Split(resource, ":") { // arn:aws:service:region:account:target
		if !slices.Contains([]string{"arn", "aws", "dynamodb"}, part) {
			parts = append(parts, strings.ReplaceAll(part, "/", "__"))
		}
	}
	resource = strings.Join(parts, ":")
	name := action + "__" + resource
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.TrimRight(name, "_")
	return name
}

func ParseIamAllow(allowStr string) (*IamAllow, error) {
	parts := SplitWhiteSpaceN(allowStr, 2)
	if len(parts) != 2 {
		err := fmt.Errorf("allow format should be: 'SERVICE:ACTION RESOURCE', got: %s", allowStr)
		Logger.Println("error:", err)
		return nil, err
	}
	return &IamAllow{Action: parts[0], Resource: parts[1]}, nil
}

type iamStatement struct {
	Effect   string `json:",omitempty"`
	Action   any    `json:",omitempty"`
	Resource any    `json:",omitempty"`
}

type iamPolicyDocument struct {
	Version   string         `json:",omitempty"`
	Statement []iamStatement `json:",omitempty"`
}

// iamAllowFromPolicyDocument reads back a document written by policyDocument:
// one Allow statement with a single action on a single resource.
func iamAllowFromPolicyDocument(policyDocument string) (*IamAllow, error) {
	policy := iamPolicyDocument{}
	err := json.Unmarshal([]byte(policyDocument), &policy)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	if len(policy.Statement) != 1 || policy.Statement[0].Effect != "Allow" {
		err := fmt.Errorf("expected 1 Allow statement, got: %s", policyDocument)
		Logger.Println("error:", err)
		return nil, err
	}
	action, okAction := policy.Statement[0].Action.(string)
	resource, okResource := policy.Statement[0].Resource.(string)
	if !okAction || !okResource {
		err := fmt.Errorf("expected a single action and resource, got: %s", policyDocument)
		Logger.Println("error:", err)
		return nil, err
	}
	return &IamAllow{Action: action, Resource: resource}, nil
}

func iamPolicyEqual(a, b string) (bool, error) {
	aData := map[string]any{}
	bData := map[string]any{}
	err := json.Unmarshal([]byte(a), &aData)
	if err != nil {
		return false, err
	}
	err = json.Unmarshal([]byte(b), &bData)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(aData, bData), nil
}

func iamAssumePolicyDocument(principalName string) (*string, error) {
	if strings.Contains(principalName, ".") {
		err := fmt.Errorf("principal should be '$name', not '$name.amazonaws.com', got: %s", principalName)
		Logger.Println("error:", err)
		return nil, err
	}
	return aws.String(`{"Version": "2012-10-17",
                        "Statement": [{"Effect": "Allow",
                                       "Principal": {"Service": "` + principalName + `.amazonaws.com"},
                                       "Action": "sts:AssumeRole"}]}`), nil
}

func iamRolePath(principalName, roleName string) string {
	return fmt.Sprintf("/%s/%s-path/", principalName, roleName)
}

func IamRoleArn(ctx context.Context, principalName, roleName string) (string, error) {
	account, err := StsAccount(ctx)
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	return fmt.Sprintf("arn:aws:iam::%s:role%s%s", account, iamRolePath(principalName, roleName), roleName), nil
}

// IamRole is a role api gateway assumes to call one dynamodb action.
type IamRole struct {
	Name         string
	Path         string
	AssumePolicy string
	InfraSetName string
	Allow        []string
}

// iamRoleCheck errors when an existing role was not created for principalName
// the way IamEnsureRole creates it.
func iamRoleCheck(role *IamRole, principalName string) error {
	rolePath := iamRolePath(principalName, role.Name)
	if role.Path != rolePath {
		err := fmt.Errorf("role path mismatch: %s %s != %s", role.Name, role.Path, rolePath)
		Logger.Println("error:", err)
		return err
	}
	want, err := iamAssumePolicyDocument(principalName)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	equal, err := iamPolicyEqual(role.AssumePolicy, *want)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	if !equal {
		err := fmt.Errorf("role assume policy mismatch: %s %s != %s", role.Name, role.AssumePolicy, *want)
		Logger.Println("error:", err)
		return err
	}
	return nil
}

func iamNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	return errors.As(err, &nse)
}

// iamRoleFromRole fills in tags, and allows for roles that belong to an infra
// set. ListRoles does not return tags.
func iamRoleFromRole(ctx context.Context, role *iamtypes.Role) (*IamRole, error) {
	document, err := url.QueryUnescape(aws.ToString(role.AssumeRolePolicyDocument))
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	r := &IamRole{
		Name:         aws.ToString(role.RoleName),
		Path:         aws.ToString(role.Path),
		AssumePolicy: document,
	}
	out, err := IamClient().ListRoleTags(ctx, &iam.ListRoleTagsInput{
		RoleName: role.RoleName,
	})
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for _, tag := range out.Tags {
		if aws.ToString(tag.Key) == infraSetTagName {
			r.InfraSetName = aws.ToString(tag.Value)
		}
	}
	if r.InfraSetName == "" {
		return r, nil
	}
	r.Allow, err = IamListRoleAllows(ctx, r.Name)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return r, nil
}

func IamListRoles(ctx context.Context, pathPrefix string) ([]*IamRole, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "IamListRoles"}
		d.Start()
		defer d.End()
	}
	var roles []*IamRole
	paginator := iam.NewListRolesPaginator(IamClient(), &iam.ListRolesInput{
		PathPrefix: aws.String(pathPrefix),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		for _, role := range out.Roles {
			r, err := iamRoleFromRole(ctx, &role)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func iamRolePolicyNames(ctx context.Context, roleName string) ([]string, error) {
	var names []string
	paginator := iam.NewListRolePoliciesPaginator(IamClient(), &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, out.PolicyNames...)
	}
	return names, nil
}

// iamRoleAllow returns nil when the role has no policy by that name.
func iamRoleAllow(ctx context.Context, roleName, policyName string) (*IamAllow, error) {
	out, err := IamClient().GetRolePolicy(ctx, &iam.GetRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		if iamNoSuchEntity(err) {
			return nil, nil
		}
		Logger.Println("error:", err)
		return nil, err
	}
	document, err := url.QueryUnescape(*out.PolicyDocument)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return iamAllowFromPolicyDocument(document)
}

// IamListRoleAllows lists the role's inline allows, sorted.
func IamListRoleAllows(ctx context.Context, roleName string) ([]string, error) {
	names, err := iamRolePolicyNames(ctx, roleName)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	var allows []string
	for _, name := range names {
		allow, err := iamRoleAllow(ctx, roleName, name)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		if allow != nil {
			allows = append(allows, allow.String())
		}
	}
	sort.Strings(allows)
	return allows, nil
}

func IamEnsureRole(ctx context.Context, infraSetName, roleName, principalName string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "IamEnsureRole"}
		d.Start()
		defer d.End()
	}
	out, err := IamClient().GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err == nil {
		document, err := url.QueryUnescape(aws.ToString(out.Role.AssumeRolePolicyDocument))
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		return iamRoleCheck(&IamRole{Name: roleName, Path: aws.ToString(out.Role.Path), AssumePolicy: document}, principalName)
	}
	if !iamNoSuchEntity(err) {
		Logger.Println("error:", err)
		return err
	}
	policyDocument, err := iamAssumePolicyDocument(principalName)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	if !preview {
		_, err = IamClient().CreateRole(ctx, &iam.CreateRoleInput{
			Path:                     aws.String(iamRolePath(principalName, roleName)),
			AssumeRolePolicyDocument: policyDocument,
			RoleName:                 aws.String(roleName),
			Tags: []iamtypes.Tag{{
				Key:   aws.String(infraSetTagName),
				Value: aws.String(infraSetName),
			}},
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"created role:", roleName, principalName)
	return nil
}

// IamEnsureRoleAllow leaves allowStr as the role's only inline allow.
func IamEnsureRoleAllow(ctx context.Context, roleName, allowStr string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "IamEnsureRoleAllow"}
		d.Start()
		defer d.End()
	}
	allow, err := ParseIamAllow(allowStr)
	if err != nil {
		return err
	}
	names, err := iamRolePolicyNames(ctx, roleName)
	if err != nil {
		if preview && iamNoSuchEntity(err) {
			Logger.Println(PreviewString(preview)+"attached role allow:", roleName, allow)
			return nil
		}
		Logger.Println("error:", err)
		return err
	}
	attached, err := iamRoleAllow(ctx, roleName, allow.policyName())
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	if attached == nil || *attached != *allow {
		if !preview {
			_, err := IamClient().PutRolePolicy(ctx, &iam.PutRolePolicyInput{
				RoleName:       aws.String(roleName),
				PolicyName:     aws.String(allow.policyName()),
				PolicyDocument: aws.String(allow.policyDocument()),
			})
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
		}
		Logger.Println(PreviewString(preview)+"attached role allow:", roleName, allow)
	}
	for _, name := range names {
		if name == allow.policyName() {
			continue
		}
		err := iamDeleteRolePolicy(ctx, roleName, name, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	return nil
}

func iamDeleteRolePolicy(ctx context.Context, roleName, policyName string, preview bool) error {
	if !preview {
		_, err := IamClient().DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(policyName),
		})
		if err != nil && !iamNoSuchEntity(err) {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"detached role allow:", roleName, policyName)
	return nil
}

func IamDeleteRole(ctx context.Context, roleName string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "IamDeleteRole"}
		d.Start()
		defer d.End()
	}
	names, err := iamRolePolicyNames(ctx, roleName)
	if err != nil {
		if iamNoSuchEntity(err) {
			return nil
		}
		Logger.Println("error:", err)
		return err
	}
	for _, name := range names {
		err := iamDeleteRolePolicy(ctx, roleName, name, preview)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	if !preview {
		_, err = IamClient().DeleteRole(ctx, &iam.DeleteRoleInput{
			RoleName: aws.String(roleName),
		})
		if err != nil && !iamNoSuchEntity(err) {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"deleted role:", roleName)
	return nil
}
