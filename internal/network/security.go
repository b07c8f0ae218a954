package network

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// ALPN adı (protokol sürümü kontrolü)
const protoName = "session-recorder-v1"

// GenerateTLSConfig: kontrol kanalı için kendinden imzalı sertifika üretir.
func GenerateTLSConfig() (*tls.Config, error) {
	// 1. Kriptografik Anahtar Oluştur (RSA 2048-bit)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("tls key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("tls serial: %w", err)
	}

	// 2. Sertifika Şablonunu Hazırla
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "session-recorder"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(24 * time.Hour * 365), // 1 yıl geçerli
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	// 3. Sertifikayı İmzala (Self-Signed)
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("tls certificate: %w", err)
	}

	// 4. PEM Formatına Çevir
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tls key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{protoName},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientTLSConfig: sertifika self-signed olduğu için doğrulama yapılmaz;
// kimlik doğrulaması şifre el sıkışmasıyla yapılır.
func ClientTLSConfig() *tls.Config {
	return &tls.Config{
		NextProtos:         []string{protoName},
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
	}
}
