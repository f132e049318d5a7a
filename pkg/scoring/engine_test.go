package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sla-prediction-engine/pkg/model"
)

func sampleOK() model.TelemetrySample {
	return model.TelemetrySample{
		Source:     "node-a",
		Target:     "node-b",
		Bandwidth:  100,
		Throughput: 80,
		Congestion: 30,
		PacketLoss: 2,
		Latency:    10,
		Jitter:     1,
	}
}

func TestRiskScore(t *testing.T) {
	t.Run("healthy link scores low", func(t *testing.T) {
		s := model.TelemetrySample{
			Bandwidth:  2,
			Throughput: 2,
			Congestion: 10,
			PacketLoss: 0,
			Latency:    5,
			Jitter:     0.5,
		}
		assert.InDelta(t, 0.11, RiskScore(s), 1e-9)
	})

	t.Run("degraded link scores high", func(t *testing.T) {
		s := model.TelemetrySample{
			Bandwidth:  4,
			Throughput: 1,
			Congestion: 95,
			PacketLoss: 20,
			Latency:    30,
			Jitter:     10,
		}
		assert.InDelta(t, 0.94, RiskScore(s), 1e-9)
	})

	t.Run("stays within unit interval", func(t *testing.T) {
		extremes := []model.TelemetrySample{
			{Bandwidth: 1, Throughput: 0, Congestion: 100, PacketLoss: 100, Latency: 10000, Jitter: 10000},
			{Bandwidth: 1, Throughput: 1},
			{Bandwidth: 1000, Throughput: 1000, Congestion: 50, PacketLoss: 5, Latency: 15, Jitter: 3},
		}
		for _, s := range extremes {
			risk := RiskScore(s)
			assert.GreaterOrEqual(t, risk, 0.0)
			assert.LessOrEqual(t, risk, 1.0)
		}
	})

	t.Run("monotonic in each degrading metric", func(t *testing.T) {
		base := sampleOK()
		baseline := RiskScore(base)

		worse := base
		worse.Latency += 5
		assert.GreaterOrEqual(t, RiskScore(worse), baseline)

		worse = base
		worse.PacketLoss += 3
		assert.GreaterOrEqual(t, RiskScore(worse), baseline)

		worse = base
		worse.Jitter += 2
		assert.GreaterOrEqual(t, RiskScore(worse), baseline)

		worse = base
		worse.Congestion += 20
		assert.GreaterOrEqual(t, RiskScore(worse), baseline)
	})

	t.Run("idempotent", func(t *testing.T) {
		s := sampleOK()
		assert.Equal(t, RiskScore(s), RiskScore(s))
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts a valid sample", func(t *testing.T) {
		assert.NoError(t, Validate(sampleOK()))
	})

	cases := []struct {
		name   string
		mutate func(*model.TelemetrySample)
		field  string
	}{
		{"zero bandwidth", func(s *model.TelemetrySample) { s.Bandwidth = 0 }, "bandwidth"},
		{"negative latency", func(s *model.TelemetrySample) { s.Latency = -1 }, "latency"},
		{"NaN jitter", func(s *model.TelemetrySample) { s.Jitter = math.NaN() }, "jitter"},
		{"infinite throughput", func(s *model.TelemetrySample) { s.Throughput = math.Inf(1) }, "throughput"},
		{"congestion above 100", func(s *model.TelemetrySample) { s.Congestion = 150 }, "congestion"},
		{"packet loss above 100", func(s *model.TelemetrySample) { s.PacketLoss = 101 }, "packet_loss"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := sampleOK()
			tc.mutate(&s)

			err := Validate(s)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestPredict(t *testing.T) {
	t.Run("violation follows strict risk threshold", func(t *testing.T) {
		engine := NewEngineWithRand("v1.0", func() float64 { return 0.5 })

		samples := []model.TelemetrySample{
			sampleOK(),
			{Bandwidth: 4, Throughput: 1, Congestion: 95, PacketLoss: 20, Latency: 30, Jitter: 10},
			{Bandwidth: 2, Throughput: 2, Congestion: 10, PacketLoss: 0, Latency: 5, Jitter: 0.5},
		}
		for _, s := range samples {
			result, err := engine.Predict(s)
			require.NoError(t, err)
			assert.Equal(t, result.RiskScore > SLAViolationThreshold, result.SLAViolation)
		}
	})

	t.Run("fills confidence and model version", func(t *testing.T) {
		engine := NewEngineWithRand("v2.1", func() float64 { return 0.5 })

		result, err := engine.Predict(sampleOK())
		require.NoError(t, err)
		assert.InDelta(t, 0.9, result.Confidence, 1e-9)
		assert.Equal(t, "v2.1", result.ModelVersion)
		assert.False(t, result.Timestamp.IsZero())
	})

	t.Run("rejects invalid samples", func(t *testing.T) {
		engine := NewEngine("v1.0")

		s := sampleOK()
		s.Bandwidth = 0
		_, err := engine.Predict(s)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "bandwidth", vErr.Field)
	})
}

func TestDetectAnomaly(t *testing.T) {
	t.Run("single trip point stays below threshold", func(t *testing.T) {
		engine := NewEngineWithRand("v1.0", func() float64 { return 0 })

		s := sampleOK()
		s.Latency = 30

		result, err := engine.DetectAnomaly(s)
		require.NoError(t, err)
		assert.InDelta(t, 0.4, result.AnomalyScore, 1e-9)
		assert.False(t, result.IsAnomaly)
		assert.Equal(t, "High latency (30.0ms)", result.Explanation)
	})

	t.Run("all trip points with perturbation clamps to one", func(t *testing.T) {
		engine := NewEngineWithRand("v1.0", func() float64 { return 0.99 })

		s := sampleOK()
		s.Latency = 30
		s.PacketLoss = 20
		s.Jitter = 10
		s.Congestion = 95

		result, err := engine.DetectAnomaly(s)
		require.NoError(t, err)
		assert.Equal(t, 1.0, result.AnomalyScore)
		assert.True(t, result.IsAnomaly)

		reasons := strings.Split(result.Explanation, "; ")
		assert.Equal(t, []string{
			"High latency (30.0ms)",
			"High packet loss (20.0%)",
			"High jitter (10.0ms)",
			"High congestion (95.0%)",
		}, reasons)
	})

	t.Run("perturbation can push a borderline sample over", func(t *testing.T) {
		s := sampleOK()
		s.Latency = 30
		s.PacketLoss = 20

		low := NewEngineWithRand("v1.0", func() float64 { return 0.1 })
		result, err := low.DetectAnomaly(s)
		require.NoError(t, err)
		assert.InDelta(t, 0.72, result.AnomalyScore, 1e-9)
		assert.False(t, result.IsAnomaly)

		high := NewEngineWithRand("v1.0", func() float64 { return 0.9 })
		result, err = high.DetectAnomaly(s)
		require.NoError(t, err)
		assert.InDelta(t, 0.88, result.AnomalyScore, 1e-9)
		assert.True(t, result.IsAnomaly)
	})

	t.Run("deterministic under a fixed random source", func(t *testing.T) {
		s := sampleOK()
		s.Latency = 30
		s.Jitter = 10

		a := NewEngineWithRand("v1.0", func() float64 { return 0.25 })
		b := NewEngineWithRand("v1.0", func() float64 { return 0.25 })

		first, err := a.DetectAnomaly(s)
		require.NoError(t, err)
		second, err := b.DetectAnomaly(s)
		require.NoError(t, err)

		assert.Equal(t, first.AnomalyScore, second.AnomalyScore)
		assert.Equal(t, first.IsAnomaly, second.IsAnomaly)
		assert.Equal(t, first.Explanation, second.Explanation)
	})

	t.Run("quiet sample explains itself", func(t *testing.T) {
		engine := NewEngineWithRand("v1.0", func() float64 { return 0 })

		result, err := engine.DetectAnomaly(sampleOK())
		require.NoError(t, err)
		assert.False(t, result.IsAnomaly)
		assert.Equal(t, "Network metrics are within normal parameters", result.Explanation)
	})

	t.Run("rejects invalid samples", func(t *testing.T) {
		engine := NewEngine("v1.0")

		s := sampleOK()
		s.Congestion = math.NaN()
		_, err := engine.DetectAnomaly(s)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "congestion", vErr.Field)
	})
}
