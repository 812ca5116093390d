package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const epsilon = 1e-10

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	// 各列の平均が0、母標準偏差が1になることを確認
	r, c := scaled.Dims()
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += scaled.At(i, j)
		}
		mean := sum / float64(r)
		if math.Abs(mean) > epsilon {
			t.Errorf("column %d: mean = %v, want 0", j, mean)
		}

		var ss float64
		for i := 0; i < r; i++ {
			d := scaled.At(i, j) - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(r))
		if math.Abs(std-1) > epsilon {
			t.Errorf("column %d: std = %v, want 1", j, std)
		}
	}

	// 逆変換で元に戻ることを確認
	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > epsilon {
				t.Errorf("restored[%d][%d] = %v, want %v", i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}

func TestStandardScalerConstantColumn(t *testing.T) {
	// 定数列はスケール1として扱われゼロ除算しない
	X := mat.NewDense(3, 1, []float64{5, 5, 5})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if v := scaled.At(i, 0); v != 0 {
			t.Errorf("scaled[%d] = %v, want 0", i, v)
		}
	}
}

func TestStandardScalerNotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	if err == nil {
		t.Error("Transform() on unfitted scaler should return error")
	}
}

func TestStandardScalerDimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	_, err := scaler.Transform(mat.NewDense(2, 3, nil))
	if err == nil {
		t.Error("Transform() with wrong feature count should return error")
	}
}

func TestMinMaxScaler(t *testing.T) {
	tests := []struct {
		name         string
		featureRange [2]float64
	}{
		{name: "default range", featureRange: [2]float64{0, 1}},
		{name: "custom range", featureRange: [2]float64{-1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X := mat.NewDense(4, 2, []float64{
				1, -5,
				2, 0,
				3, 5,
				4, 10,
			})

			scaler := NewMinMaxScaler(tt.featureRange)
			scaled, err := scaler.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform() error = %v", err)
			}

			// 各列の最小・最大が指定範囲に一致することを確認
			r, c := scaled.Dims()
			for j := 0; j < c; j++ {
				minVal, maxVal := scaled.At(0, j), scaled.At(0, j)
				for i := 1; i < r; i++ {
					v := scaled.At(i, j)
					if v < minVal {
						minVal = v
					}
					if v > maxVal {
						maxVal = v
					}
				}
				if math.Abs(minVal-tt.featureRange[0]) > epsilon {
					t.Errorf("column %d: min = %v, want %v", j, minVal, tt.featureRange[0])
				}
				if math.Abs(maxVal-tt.featureRange[1]) > epsilon {
					t.Errorf("column %d: max = %v, want %v", j, maxVal, tt.featureRange[1])
				}
			}

			// 逆変換で元に戻ることを確認
			restored, err := scaler.InverseTransform(scaled)
			if err != nil {
				t.Fatalf("InverseTransform() error = %v", err)
			}
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					if math.Abs(restored.At(i, j)-X.At(i, j)) > epsilon {
						t.Errorf("restored[%d][%d] = %v, want %v", i, j, restored.At(i, j), X.At(i, j))
					}
				}
			}
		})
	}
}

func TestMinMaxScalerInvalidRange(t *testing.T) {
	scaler := NewMinMaxScaler([2]float64{1, 0})
	err := scaler.Fit(mat.NewDense(2, 1, []float64{1, 2}))
	if err == nil {
		t.Error("Fit() with inverted feature range should return error")
	}
}
