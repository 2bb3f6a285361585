package lib

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

var sess *aws.Config
var sessLock sync.Mutex

func Session() *aws.Config {
	sessLock.Lock()
	defer sessLock.Unlock()
	if sess == nil {
		cfg, err := config.LoadDefaultConfig(
			context.Background(),
			config.WithRetryMaxAttempts(5),
		)
		if err != nil {
			panic(err)
		}
		sess = &cfg
	}
	return sess
}

func SessionExplicit(accessKeyID, accessKeySecret, region string) *aws.Config {
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(region),
		config.WithRetryMaxAttempts(5),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
	)
	if err != nil {
		panic(err)
	}
	return &cfg
}

// SessionUseExplicit makes every client created afterwards use static
// credentials in region instead of the default chain.
func SessionUseExplicit(accessKeyID, accessKeySecret, region string) error {
	if accessKeyID == "" || accessKeySecret == "" || region == "" {
		err := fmt.Errorf("static credentials need an access key, a secret key and a region")
		Logger.Println("error:", err)
		return err
	}
	cfg := SessionExplicit(accessKeyID, accessKeySecret, region)
	sessLock.Lock()
	defer sessLock.Unlock()
	sess = cfg
	return nil
}

func Region() string {
	return Session().Region
}
