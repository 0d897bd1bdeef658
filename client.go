// https://github.com/arangodb/go-driver

package arango

import (
	"crypto/tls"
	"crypto/x509"
	"log"

	driver "github.com/arangodb/go-driver"
	arangohttp "github.com/arangodb/go-driver/http"
	"github.com/pkg/errors"
)

type Client struct {
	driver.Client
}

func NewClient(endpoints []string, opts ...func(o *Options)) *Client {
	return newClient(endpoints, newOptions(opts))
}

func newClient(endpoints []string, opt *Options) *Client {
	conn, err := arangohttp.NewConnection(arangohttp.ConnectionConfig{
		Endpoints: endpoints,
		TLSConfig: opt.TLS,
		ConnLimit: opt.ConnLimit,
	})
	if err != nil {
		log.Fatalln(err)
	}

	config := driver.ClientConfig{Connection: conn}
	if opt.Username != "" {
		config.Authentication = driver.BasicAuthentication(opt.Username, opt.Password)
	}

	client, err := driver.NewClient(config)
	if err != nil {
		log.Fatalln(err)
	}
	return &Client{Client: client}
}

func ParseTLSConfig(pemFile []byte) (*tls.Config, error) {
	tlsConfig := new(tls.Config)
	tlsConfig.RootCAs = x509.NewCertPool()
	ok := tlsConfig.RootCAs.AppendCertsFromPEM(pemFile)
	if !ok {
		return nil, errors.New("failed parsing pem file")
	}
	return tlsConfig, nil
}
