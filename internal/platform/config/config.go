package config

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs at startup. Key material is
// provided as PEM so deployments can mount it from a secret store without the
// service knowing where it came from.
type Config struct {
	Addr        string
	MetricsAddr string

	DCSPostURL     string
	DCSCallTimeout time.Duration

	AuthCodeTTL    time.Duration
	AccessTokenTTL time.Duration

	VCIssuer string
	VCTTL    time.Duration

	Redis RedisConfig
	Kafka KafkaConfig

	// PostgresURL, when set, switches the authorization code store to Postgres.
	PostgresURL string

	Keys    Keys
	Clients map[string]Client
}

// RedisConfig holds connection settings for the Redis-backed stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the audit event producer.
type KafkaConfig struct {
	Brokers         string
	Topic           string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// Keys holds the parsed key material for the two JOSE directions and VC signing.
type Keys struct {
	// Outbound to DCS: we sign, they decrypt.
	SigningKey    *rsa.PrivateKey // signs the inner JWS sent to DCS
	DCSEncryption *rsa.PublicKey  // encrypts the outer JWE for DCS

	// Inbound from DCS: we decrypt, they signed.
	DecryptionKey *rsa.PrivateKey // decrypts the JWE DCS sends back
	DCSSigning    *rsa.PublicKey  // verifies the inner JWS from DCS

	VCSigningKey *ecdsa.PrivateKey // signs issued verifiable credentials
}

// Client is one registered relying party. Exactly one of PublicKeyPEM or
// SecretHash is expected depending on the client's token auth method.
type Client struct {
	Issuer       string `json:"issuer"`
	AuthMethod   string `json:"auth_method"` // "private_key_jwt" or "client_secret_post"
	PublicKeyPEM string `json:"public_key"`
	SecretHash   string `json:"secret_hash"` // bcrypt hash for client_secret_post
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:           envOr("PASSPORT_CRI_ADDR", ":8080"),
		MetricsAddr:    envOr("PASSPORT_CRI_METRICS_ADDR", ":9090"),
		DCSPostURL:     os.Getenv("DCS_POST_URL"),
		DCSCallTimeout: envDuration("DCS_CALL_TIMEOUT", 10*time.Second),
		AuthCodeTTL:    envDuration("AUTH_CODE_TTL", 10*time.Minute),
		AccessTokenTTL: envDuration("ACCESS_TOKEN_TTL", time.Hour),
		VCIssuer:       envOr("VC_ISSUER", "https://passport-cri.example.com"),
		VCTTL:          envDuration("VC_TTL", 6*time.Hour),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Topic:           envOr("KAFKA_AUDIT_TOPIC", "passport-cri.audit"),
			Acks:            envOr("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
	}

	keys, err := keysFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Keys = keys

	clients, err := clientsFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Clients = clients

	return cfg, nil
}

// ClientIssuer returns the audience URI registered for a client. A client with
// no registration is a deployment fault, not a request fault.
func (c *Config) ClientIssuer(clientID string) (string, error) {
	client, ok := c.Clients[clientID]
	if !ok || client.Issuer == "" {
		return "", fmt.Errorf("no issuer registered for client %q", clientID)
	}
	return client.Issuer, nil
}

func keysFromEnv() (Keys, error) {
	var keys Keys
	var err error

	if keys.SigningKey, err = rsaPrivateKey("DCS_SIGNING_KEY_PEM"); err != nil {
		return keys, err
	}
	if keys.DecryptionKey, err = rsaPrivateKey("DCS_DECRYPTION_KEY_PEM"); err != nil {
		return keys, err
	}
	if keys.DCSEncryption, err = rsaPublicKey("DCS_ENCRYPTION_CERT_PEM"); err != nil {
		return keys, err
	}
	if keys.DCSSigning, err = rsaPublicKey("DCS_SIGNING_CERT_PEM"); err != nil {
		return keys, err
	}
	if keys.VCSigningKey, err = ecPrivateKey("VC_SIGNING_KEY_PEM"); err != nil {
		return keys, err
	}
	return keys, nil
}

func clientsFromEnv() (map[string]Client, error) {
	raw := os.Getenv("CLIENT_REGISTRY")
	if raw == "" {
		return map[string]Client{}, nil
	}
	var clients map[string]Client
	if err := json.Unmarshal([]byte(raw), &clients); err != nil {
		return nil, fmt.Errorf("parse CLIENT_REGISTRY: %w", err)
	}
	return clients, nil
}

func rsaPrivateKey(env string) (*rsa.PrivateKey, error) {
	block, err := pemBlock(env)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA key", env)
	}
	return rsaKey, nil
}

func ecPrivateKey(env string) (*ecdsa.PrivateKey, error) {
	block, err := pemBlock(env)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env, err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an EC key", env)
	}
	return ecKey, nil
}

// rsaPublicKey accepts either a certificate or a bare public key block, since
// DCS distributes its material as X.509 certificates.
func rsaPublicKey(env string) (*rsa.PublicKey, error) {
	block, err := pemBlock(env)
	if err != nil {
		return nil, err
	}
	if block.Type == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", env, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%s: certificate does not carry an RSA key", env)
		}
		return pub, nil
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA public key", env)
	}
	return rsaPub, nil
}

func pemBlock(env string) (*pem.Block, error) {
	raw := os.Getenv(env)
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", env)
	}
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", env)
	}
	return block, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
