package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/classifier"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// 模型工件检查工具：验证模型文件可加载，并对一个样本向量打分
//
// 用法:
//   go run ./cmd/check-models -models models/machine_doctor.json,models/random_forest.json
//   go run ./cmd/check-models -vector "3.5,-0.06,0.95,850,10,120"
func main() {
	var modelPaths = flag.String("models", "", "Comma-separated model artifact paths (default: configured models)")
	var vector = flag.String("vector", "", "Feature vector to score: pressure,drift_velocity,confidence_r2,part_temp,scan_speed,quench_flow")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	paths := []string{cfg.Models.PrimaryPath, cfg.Models.SecondaryPath}
	if *modelPaths != "" {
		paths = strings.Split(*modelPaths, ",")
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	sources := make([]classifier.ModelSource, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, classifier.ModelSource{Path: strings.TrimSpace(p)})
	}

	ensemble, err := classifier.NewEnsemble(logger, sources...)
	if err != nil {
		log.Fatalf("No usable model: %v", err)
	}

	fmt.Printf("Loaded %d/%d models", ensemble.Loaded(), len(paths))
	if ensemble.Degraded() {
		fmt.Printf(" (DEGRADED)")
	}
	fmt.Println()
	for _, loadErr := range ensemble.LoadErrors() {
		fmt.Printf("  load failure: %v\n", loadErr)
	}

	if *vector == "" {
		return
	}

	parts := strings.Split(*vector, ",")
	if len(parts) != len(models.FeatureOrder) {
		log.Fatalf("Expected %d feature values, got %d", len(models.FeatureOrder), len(parts))
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			log.Fatalf("Invalid feature value %q: %v", p, err)
		}
		values[i] = v
	}

	vec := models.FeatureVector{
		Pressure:      values[0],
		DriftVelocity: values[1],
		ConfidenceR2:  values[2],
		PartTemp:      values[3],
		ScanSpeed:     values[4],
		QuenchFlow:    values[5],
	}

	opinions, err := ensemble.Score(vec)
	if err != nil {
		log.Fatalf("Scoring failed: %v", err)
	}

	fmt.Println("Opinions:")
	for _, op := range opinions {
		fmt.Printf("  %-30s %.4f\n", op.ModelID, op.FailureProbability)
	}
}
