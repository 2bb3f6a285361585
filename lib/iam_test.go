package lib

import (
	"testing"
)

func TestIamAllowPolicyName(t *testing.T) {
	type test struct {
		allow string
		name  string
	}
	tests := []test{
		{"dynamodb:Scan arn:aws:dynamodb:eu-west-2:123456789012:table/FoodLogTable", "dynamodb_Scan__eu-west-2_123456789012_table__FoodLogTable"},
		{"dynamodb:* *", "dynamodb_ALL__ALL"},
	}
	for _, test := range tests {
		allow, err := ParseIamAllow(test.allow)
		if err != nil {
			t.Fatal(err)
		}
		if allow.policyName() != test.name {
			t.Errorf("\ngot:\n%s\nwant:\n%s\n", allow.policyName(), test.name)
		}
		if allow.String() != test.allow {
			t.Errorf("\ngot:\n%s\nwant:\n%s\n", allow.String(), test.allow)
		}
	}
}

func TestParseIamAllowInvalid(t *testing.T) {
	for _, s := range []string{"", "dynamodb:Scan"} {
		_, err := ParseIamAllow(s)
		if err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestIamAllowFromPolicyDocument(t *testing.T) {
	allow := &IamAllow{Action: "dynamodb:GetItem", Resource: "arn:aws:dynamodb:us-east-1:1:table/FoodLogTable"}
	got, err := iamAllowFromPolicyDocument(allow.policyDocument())
	if err != nil {
		t.Fatal(err)
	}
	if *got != *allow {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", got, allow)
	}
	for _, document := range []string{
		`{"Version": "2012-10-17", "Statement": [{"Effect": "Allow", "Action": ["dynamodb:Scan", "dynamodb:PutItem"], "Resource": "*"}]}`,
		`{"Version": "2012-10-17", "Statement": [{"Effect": "Allow", "Action": "dynamodb:Scan", "Resource": ["*"]}]}`,
		`{"Version": "2012-10-17", "Statement": [{"Effect": "Deny", "Action": "dynamodb:Scan", "Resource": "*"}]}`,
		`{"Version": "2012-10-17", "Statement": []}`,
		`not json`,
	} {
		_, err := iamAllowFromPolicyDocument(document)
		if err == nil {
			t.Errorf("expected error for: %s", document)
		}
	}
}

func TestIamRoleCheck(t *testing.T) {
	assume, err := iamAssumePolicyDocument(apiPrincipal)
	if err != nil {
		t.Fatal(err)
	}
	role := &IamRole{
		Name:         "FoodLogTable-scan",
		Path:         iamRolePath(apiPrincipal, "FoodLogTable-scan"),
		AssumePolicy: *assume,
	}
	err = iamRoleCheck(role, apiPrincipal)
	if err != nil {
		t.Errorf("got %v", err)
	}
	wrongPath := *role
	wrongPath.Path = "/"
	if iamRoleCheck(&wrongPath, apiPrincipal) == nil {
		t.Errorf("expected path mismatch")
	}
	lambda, err := iamAssumePolicyDocument("lambda")
	if err != nil {
		t.Fatal(err)
	}
	wrongPolicy := *role
	wrongPolicy.AssumePolicy = *lambda
	if iamRoleCheck(&wrongPolicy, apiPrincipal) == nil {
		t.Errorf("expected assume policy mismatch")
	}
}

func TestIamPolicyEqual(t *testing.T) {
	a := `{"Version": "2012-10-17", "Statement": [{"Effect": "Allow", "Action": "sts:AssumeRole"}]}`
	b := `{"Statement":[{"Action":"sts:AssumeRole","Effect":"Allow"}],"Version":"2012-10-17"}`
	equal, err := iamPolicyEqual(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Errorf("expected equal")
	}
	equal, err = iamPolicyEqual(a, `{"Version": "2012-10-17"}`)
	if err != nil {
		t.Fatal(err)
	}
	if equal {
		t.Errorf("expected not equal")
	}
}

func TestIamAssumePolicyDocument(t *testing.T) {
	doc, err := iamAssumePolicyDocument("apigateway")
	if err != nil {
		t.Fatal(err)
	}
	want := `{"Version": "2012-10-17", "Statement": [{"Effect": "Allow", "Principal": {"Service": "apigateway.amazonaws.com"}, "Action": "sts:AssumeRole"}]}`
	equal, err := iamPolicyEqual(*doc, want)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", *doc, want)
	}
	_, err = iamAssumePolicyDocument("apigateway.amazonaws.com")
	if err == nil {
		t.Errorf("expected error")
	}
}
