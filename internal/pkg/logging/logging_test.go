package logging

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxnID(t *testing.T) {
	assert.Equal(t, "", TxnID(nil))
	assert.Equal(t, "", TxnID(context.Background()))

	ctx := WithTxnID(context.Background(), "txn-1")
	assert.Equal(t, "txn-1", TxnID(ctx))
	assert.Equal(t, "txn-1", Logger(ctx).Data["txnid"])

	_, tagged := Logger(nil).Data["txnid"]
	assert.False(t, tagged)
	assert.NotEmpty(t, Logger(nil).Data["instance"])
}

func TestConfigure(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetOutput(logrus.StandardLogger().Out)

	cfg := viper.New()
	cfg.Set("logging.location", filepath.Join(t.TempDir(), "bridge.log"))
	cfg.Set("logging.level", "warn")
	cfg.Set("logging.format", "json")

	require.NoError(t, Configure(cfg))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	cfg.Set("logging.location", "stderr")
	cfg.Set("logging.format", "xml")
	assert.Error(t, Configure(cfg))

	cfg.Set("logging.format", "text")
	cfg.Set("logging.level", "loud")
	assert.Error(t, Configure(cfg))
}
