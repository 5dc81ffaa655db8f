package main

import (
	"flag"
	"os"

	"github.com/hdh-bench/platform/pkg/common/logger"
	"github.com/hdh-bench/platform/pkg/population"
	"github.com/hdh-bench/platform/pkg/verify"
)

func main() {
	logger.Init()

	var (
		configPath = flag.String("config", "", "generation config YAML used for the dataset")
		dataDir    = flag.String("data", "data", "dataset directory")
	)
	flag.Parse()

	cfg, err := population.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load generation config")
	}

	outcome, err := verify.Run(cfg, *dataDir)
	if err != nil {
		logger.WithError(err).Fatal("Verification could not run")
	}

	for _, issue := range outcome.Issues {
		logger.WithFields(map[string]interface{}{
			"kind":   issue.Kind,
			"detail": issue.Detail,
		}).Error("Verification issue")
	}

	logger.WithFields(map[string]interface{}{
		"checked": outcome.Checked,
		"issues":  len(outcome.Issues),
	}).Info("Verification finished")

	if !outcome.OK() {
		os.Exit(1)
	}
}
