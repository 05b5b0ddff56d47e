package http

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
)

// ListenOptions 监听相关的可配置项
type ListenOptions struct {
	// Network tcp / tcp4 / tcp6，默认 tcp4
	Network string `mapstructure:"network" yaml:"network"`

	DisableStartupMessage bool `mapstructure:"disable_startup_message" yaml:"disable_startup_message"`
	EnablePrintRoutes     bool `mapstructure:"enable_print_routes" yaml:"enable_print_routes"`

	// ShutdownTimeout 0 使用 fiber 默认值
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	CertFile    string `mapstructure:"cert_file" yaml:"cert_file"`
	CertKeyFile string `mapstructure:"cert_key_file" yaml:"cert_key_file"`
	// ClientCAFile 非空时要求客户端证书（mTLS）
	ClientCAFile string `mapstructure:"client_ca_file" yaml:"client_ca_file"`
	// TLSMinVersion 771 = TLS 1.2, 772 = TLS 1.3
	TLSMinVersion uint16 `mapstructure:"tls_min_version" yaml:"tls_min_version"`
}

// TLSEnabled 是否配置了服务端证书
func (o ListenOptions) TLSEnabled() bool {
	return o.CertFile != "" && o.CertKeyFile != ""
}

// buildListenConfig TLS 由 createListener 处理，这里只保留与证书无关的项
func buildListenConfig(opts ListenOptions) fiber.ListenConfig {
	network := opts.Network
	if network == "" {
		network = "tcp4"
	}
	return fiber.ListenConfig{
		ListenerNetwork:       network,
		DisableStartupMessage: opts.DisableStartupMessage,
		EnablePrintRoutes:     opts.EnablePrintRoutes,
		ShutdownTimeout:       opts.ShutdownTimeout,
	}
}

func createListener(addr string, opts ListenOptions) (net.Listener, error) {
	network := opts.Network
	if network == "" {
		network = "tcp4"
	}
	if !opts.TLSEnabled() {
		return net.Listen(network, addr)
	}

	tlsConfig, err := buildTLSConfig(opts)
	if err != nil {
		return nil, err
	}
	return tls.Listen(network, addr, tlsConfig)
}

func buildTLSConfig(opts ListenOptions) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.CertKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if opts.TLSMinVersion > 0 {
		cfg.MinVersion = opts.TLSMinVersion
	}

	if opts.ClientCAFile != "" {
		pem, err := os.ReadFile(opts.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("client CA %s contains no certificates", opts.ClientCAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}
