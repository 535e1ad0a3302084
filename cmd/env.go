package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/notify"
	"github.com/impostorwatch/impostorwatch/pkg/pipeline"
	"github.com/impostorwatch/impostorwatch/pkg/storage"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

// env bundles everything a subcommand needs: the locked database, the
// API client, and the notifier.
type env struct {
	db       *storage.DB
	client   *twitter.HTTPClient
	notifier *notify.Notifier
	lock     *utils.DBLock
}

// openEnv resolves config, acquires the DB lock, and opens the storage
// layer. Callers must defer e.close().
func openEnv(cmd *cobra.Command) (*env, error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}

	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}

	db, err := storage.Open(absPath)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	return &env{
		db: db,
		client: twitter.NewHTTPClient(twitter.Credentials{
			BearerToken: viper.GetString("twitter.bearertoken"),
			WriteToken:  viper.GetString("twitter.writetoken"),
		}),
		notifier: notify.New(viper.GetString("telegram.bottoken"), viper.GetString("telegram.chatid")),
		lock:     lock,
	}, nil
}

func (e *env) close() {
	e.db.Close()
	e.lock.Unlock()
}

// requireBearer fails early when the read credentials are missing, so
// long-running jobs don't start just to 401.
func (e *env) requireBearer() error {
	if viper.GetString("twitter.bearertoken") == "" {
		return fmt.Errorf("twitter.bearertoken not set in config. See ~/.impostorwatch.yaml")
	}
	return nil
}

func (e *env) pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		Client:   e.client,
		DB:       e.db,
		Brands:   storage.NewBrandCache(e.db),
		Notifier: e.notifier,
	})
}
