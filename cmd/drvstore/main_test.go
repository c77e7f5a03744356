package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudradar-monitoring/drvstore"
)

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"oem1.inf", "oem2.inf"}, splitNames(" oem1.inf,, oem2.inf ,"))
	assert.Nil(t, splitNames(" , "))
}

func TestCountActions(t *testing.T) {
	assert.Equal(t, 0, countActions(false, false))
	assert.Equal(t, 2, countActions(true, false, true))
}

func TestHandleFlagOffline(t *testing.T) {
	cfg := drvstore.NewConfig()

	handleFlagOffline(cfg, "")
	assert.Equal(t, drvstore.ModeOnline, cfg.Mode)

	handleFlagOffline(cfg, `C:\mount\img`)
	assert.Equal(t, drvstore.ModeOffline, cfg.Mode)
	assert.Equal(t, `C:\mount\img`, cfg.ImagePath)
}
