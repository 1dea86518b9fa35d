package app

import (
	"fmt"

	vaultHTTP "github.com/zeroapp/credvault/internal/vault/http"
	vaultRepository "github.com/zeroapp/credvault/internal/vault/repository"
	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
)

// DataKeyRepository returns the data key repository based on database driver.
func (c *Container) DataKeyRepository() (vaultUseCase.DataKeyRepository, error) {
	var err error
	c.dataKeyRepoInit.Do(func() {
		c.dataKeyRepo, err = c.initDataKeyRepository()
		if err != nil {
			c.initErrors["dataKeyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dataKeyRepo"]; exists {
		return nil, storedErr
	}
	return c.dataKeyRepo, nil
}

// CredentialRepository returns the credential repository based on database driver.
func (c *Container) CredentialRepository() (vaultUseCase.CredentialRepository, error) {
	var err error
	c.credentialRepoInit.Do(func() {
		c.credentialRepo, err = c.initCredentialRepository()
		if err != nil {
			c.initErrors["credentialRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialRepo"]; exists {
		return nil, storedErr
	}
	return c.credentialRepo, nil
}

// AccessLogRepository returns the access log repository based on database driver.
func (c *Container) AccessLogRepository() (vaultUseCase.AccessLogRepository, error) {
	var err error
	c.accessLogRepoInit.Do(func() {
		c.accessLogRepo, err = c.initAccessLogRepository()
		if err != nil {
			c.initErrors["accessLogRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessLogRepo"]; exists {
		return nil, storedErr
	}
	return c.accessLogRepo, nil
}

// PlatformRepository returns the platform catalog repository based on database driver.
func (c *Container) PlatformRepository() (vaultUseCase.PlatformRepository, error) {
	var err error
	c.platformRepoInit.Do(func() {
		c.platformRepo, err = c.initPlatformRepository()
		if err != nil {
			c.initErrors["platformRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["platformRepo"]; exists {
		return nil, storedErr
	}
	return c.platformRepo, nil
}

// CredentialManager returns the credential manager use case.
func (c *Container) CredentialManager() (vaultUseCase.CredentialManager, error) {
	var err error
	c.credentialManagerInit.Do(func() {
		c.credentialManager, err = c.initCredentialManager()
		if err != nil {
			c.initErrors["credentialManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialManager"]; exists {
		return nil, storedErr
	}
	return c.credentialManager, nil
}

// AccessLogUseCase returns the access log use case.
func (c *Container) AccessLogUseCase() (vaultUseCase.AccessLogUseCase, error) {
	var err error
	c.accessLogUseCaseInit.Do(func() {
		c.accessLogUseCase, err = c.initAccessLogUseCase()
		if err != nil {
			c.initErrors["accessLogUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessLogUseCase"]; exists {
		return nil, storedErr
	}
	return c.accessLogUseCase, nil
}

// PlatformUseCase returns the platform catalog use case.
func (c *Container) PlatformUseCase() (vaultUseCase.PlatformUseCase, error) {
	var err error
	c.platformUseCaseInit.Do(func() {
		c.platformUseCase, err = c.initPlatformUseCase()
		if err != nil {
			c.initErrors["platformUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["platformUseCase"]; exists {
		return nil, storedErr
	}
	return c.platformUseCase, nil
}

// CredentialHandler returns the HTTP handler for credential operations.
func (c *Container) CredentialHandler() (*vaultHTTP.CredentialHandler, error) {
	var err error
	c.credentialHandlerInit.Do(func() {
		c.credentialHandler, err = c.initCredentialHandler()
		if err != nil {
			c.initErrors["credentialHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialHandler"]; exists {
		return nil, storedErr
	}
	return c.credentialHandler, nil
}

// AccessLogHandler returns the HTTP handler for access log queries.
func (c *Container) AccessLogHandler() (*vaultHTTP.AccessLogHandler, error) {
	var err error
	c.accessLogHandlerInit.Do(func() {
		c.accessLogHandler, err = c.initAccessLogHandler()
		if err != nil {
			c.initErrors["accessLogHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessLogHandler"]; exists {
		return nil, storedErr
	}
	return c.accessLogHandler, nil
}

// PlatformHandler returns the HTTP handler for the platform catalog.
func (c *Container) PlatformHandler() (*vaultHTTP.PlatformHandler, error) {
	var err error
	c.platformHandlerInit.Do(func() {
		c.platformHandler, err = c.initPlatformHandler()
		if err != nil {
			c.initErrors["platformHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["platformHandler"]; exists {
		return nil, storedErr
	}
	return c.platformHandler, nil
}

// initDataKeyRepository creates the data key repository based on the database driver.
func (c *Container) initDataKeyRepository() (vaultUseCase.DataKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for data key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return vaultRepository.NewPostgreSQLDataKeyRepository(db), nil
	case "mysql":
		return vaultRepository.NewMySQLDataKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCredentialRepository creates the credential repository based on the database driver.
func (c *Container) initCredentialRepository() (vaultUseCase.CredentialRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for credential repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return vaultRepository.NewPostgreSQLCredentialRepository(db), nil
	case "mysql":
		return vaultRepository.NewMySQLCredentialRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAccessLogRepository creates the access log repository based on the database driver.
func (c *Container) initAccessLogRepository() (vaultUseCase.AccessLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for access log repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return vaultRepository.NewPostgreSQLAccessLogRepository(db), nil
	case "mysql":
		return vaultRepository.NewMySQLAccessLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initPlatformRepository creates the platform repository based on the database driver.
func (c *Container) initPlatformRepository() (vaultUseCase.PlatformRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for platform repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return vaultRepository.NewPostgreSQLPlatformRepository(db), nil
	case "mysql":
		return vaultRepository.NewMySQLPlatformRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCredentialManager creates the credential manager with all its dependencies.
// When metrics are enabled the manager is wrapped with the recording decorator.
func (c *Container) initCredentialManager() (vaultUseCase.CredentialManager, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for credential manager: %w", err)
	}

	dataKeyRepo, err := c.DataKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get data key repository for credential manager: %w", err)
	}

	credentialRepo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for credential manager: %w", err)
	}

	accessLogRepo, err := c.AccessLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get access log repository for credential manager: %w", err)
	}

	platformRepo, err := c.PlatformRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform repository for credential manager: %w", err)
	}

	kmsClient, err := c.KMSClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms client for credential manager: %w", err)
	}

	algorithm, err := c.encryptionAlgorithm()
	if err != nil {
		return nil, err
	}

	refresher, err := c.Refresher()
	if err != nil {
		return nil, fmt.Errorf("failed to get token refresher for credential manager: %w", err)
	}

	manager := vaultUseCase.NewCredentialUseCase(
		txManager,
		dataKeyRepo,
		credentialRepo,
		accessLogRepo,
		platformRepo,
		kmsClient,
		c.Engine(),
		refresher,
		algorithm,
		c.config.ExpiryWindow,
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for credential manager: %w", err)
		}
		manager = vaultUseCase.NewCredentialManagerWithMetrics(manager, businessMetrics)
	}

	return manager, nil
}

// initAccessLogUseCase creates the access log use case.
func (c *Container) initAccessLogUseCase() (vaultUseCase.AccessLogUseCase, error) {
	accessLogRepo, err := c.AccessLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get access log repository for access log use case: %w", err)
	}
	return vaultUseCase.NewAccessLogUseCase(accessLogRepo), nil
}

// initPlatformUseCase creates the platform catalog use case.
func (c *Container) initPlatformUseCase() (vaultUseCase.PlatformUseCase, error) {
	platformRepo, err := c.PlatformRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform repository for platform use case: %w", err)
	}
	return vaultUseCase.NewPlatformUseCase(platformRepo), nil
}

// initCredentialHandler creates the credential HTTP handler.
func (c *Container) initCredentialHandler() (*vaultHTTP.CredentialHandler, error) {
	manager, err := c.CredentialManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential manager for credential handler: %w", err)
	}
	return vaultHTTP.NewCredentialHandler(manager, c.Logger()), nil
}

// initAccessLogHandler creates the access log HTTP handler.
func (c *Container) initAccessLogHandler() (*vaultHTTP.AccessLogHandler, error) {
	accessLogUseCase, err := c.AccessLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get access log use case for access log handler: %w", err)
	}
	return vaultHTTP.NewAccessLogHandler(accessLogUseCase, c.Logger()), nil
}

// initPlatformHandler creates the platform HTTP handler.
func (c *Container) initPlatformHandler() (*vaultHTTP.PlatformHandler, error) {
	platformUseCase, err := c.PlatformUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform use case for platform handler: %w", err)
	}
	return vaultHTTP.NewPlatformHandler(platformUseCase, c.Logger()), nil
}
