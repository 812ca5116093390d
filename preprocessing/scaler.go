// Package preprocessing は表形式データの特徴量前処理を提供する
// （標準化・スケーリング・欠損値補完・One-Hotエンコーディング）
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rainierlab/crimecensus/core/model"
	"github.com/rainierlab/crimecensus/pkg/errors"
)

// 定数特徴量のスケールを1に置き換える閾値（ゼロ除算を避ける）
const minScale = 1e-8

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewValueError("StandardScaler.Fit", "empty data")
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)

		if s.WithMean {
			s.Mean[j] = stat.Mean(col, nil)
		}

		if s.WithStd {
			// 母標準偏差（scikit-learnと同じ、n で割る）
			variance := stat.PopVariance(col, nil)
			s.Scale[j] = math.Sqrt(variance)
			if math.Abs(s.Scale[j]) < minScale {
				s.Scale[j] = 1.0
			}
		} else {
			s.Scale[j] = 1.0
		}
	}

	s.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}

	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}

	return result, nil
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin は学習データの各特徴量の最小値
	DataMin []float64

	// DataMax は学習データの各特徴量の最大値
	DataMax []float64

	// Scale は各特徴量のスケール (max - min)
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewValueError("MinMaxScaler.Fit", "empty data")
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return errors.NewValidationError("feature_range", "max must be greater than min", m.FeatureRange)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)

		minVal, maxVal := col[0], col[0]
		for _, v := range col[1:] {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}

		m.DataMin[j] = minVal
		m.DataMax[j] = maxVal

		dataRange := maxVal - minVal
		if math.Abs(dataRange) < minScale {
			// 定数特徴量の場合、スケールを1に設定
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = dataRange
		}
	}

	m.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			// X_scaled = (X - X.min) / (X.max - X.min) * (max - min) + min
			scaled := (X.At(i, j)-m.DataMin[j])/m.Scale[j]*featureRange + m.FeatureRange[0]
			result.Set(i, j, scaled)
		}
	}

	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			original := (X.At(i, j)-m.FeatureRange[0])/featureRange*m.Scale[j] + m.DataMin[j]
			result.Set(i, j, original)
		}
	}

	return result, nil
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}
