package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	cryptoService "github.com/zeroapp/credvault/internal/crypto/service"
	"github.com/zeroapp/credvault/internal/kms"
)

// Engine returns the AEAD encryption engine.
func (c *Container) Engine() cryptoService.Engine {
	c.engineInit.Do(func() {
		c.engine = cryptoService.NewEngine(cryptoService.NewCipherFactory())
	})
	return c.engine
}

// KMSClient returns the key management service client.
// It opens a gocloud.dev secrets keeper for the configured key URI on first access.
func (c *Container) KMSClient() (kms.Client, error) {
	var err error
	c.kmsClientInit.Do(func() {
		c.kmsClient, err = c.initKMSClient()
		if err != nil {
			c.initErrors["kmsClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["kmsClient"]; exists {
		return nil, storedErr
	}
	return c.kmsClient, nil
}

// initKMSClient opens the keeper for the configured KMS key URI.
func (c *Container) initKMSClient() (kms.Client, error) {
	if c.config.KMSKeyURI == "" {
		return nil, fmt.Errorf("KMS_KEY_URI is required")
	}
	return kms.NewKeeperClient(context.Background(), c.config.KMSKeyURI, c.Logger())
}

// encryptionAlgorithm validates and returns the configured AEAD algorithm.
func (c *Container) encryptionAlgorithm() (cryptoDomain.Algorithm, error) {
	algorithm := cryptoDomain.Algorithm(c.config.EncryptionAlgorithm)
	if !algorithm.Valid() {
		return "", fmt.Errorf("unsupported encryption algorithm: %q", c.config.EncryptionAlgorithm)
	}
	return algorithm, nil
}
