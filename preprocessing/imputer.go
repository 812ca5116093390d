package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/rainierlab/crimecensus/core/model"
	"github.com/rainierlab/crimecensus/dataset"
	"github.com/rainierlab/crimecensus/pkg/errors"
)

// ImputeStrategy は欠損値補完の戦略
type ImputeStrategy string

const (
	// ImputeMean は欠損値を列の平均値で補完する
	ImputeMean ImputeStrategy = "mean"
	// ImputeMedian は欠損値を列の中央値で補完する
	ImputeMedian ImputeStrategy = "median"
	// ImputeConstant は欠損値を固定値で補完する
	ImputeConstant ImputeStrategy = "constant"
)

// SimpleImputer はscikit-learn互換の欠損値補完器
// NaNを欠損値として扱い、列ごとの統計量または固定値で置き換える
type SimpleImputer struct {
	model.BaseEstimator

	// Strategy は補完戦略
	Strategy ImputeStrategy

	// FillValue はImputeConstant戦略で使用する固定値
	FillValue float64

	// FillString はImputeConstant戦略でカテゴリ列に使用する番兵値
	// 空の場合は"missing"が使われる
	FillString string

	// Statistics は学習した列ごとの補完値
	Statistics []float64

	// NFeatures は特徴量の数
	NFeatures int
}

// NewSimpleImputer は新しいSimpleImputerを作成する
//
// 使用例:
//
//	imputer := preprocessing.NewSimpleImputer(preprocessing.ImputeMedian, 0)
//	XFilled, err := imputer.FitTransform(X)
func NewSimpleImputer(strategy ImputeStrategy, fillValue float64) *SimpleImputer {
	return &SimpleImputer{
		Strategy:  strategy,
		FillValue: fillValue,
	}
}

// Fit は各列の補完値（平均・中央値・固定値）を学習する
// 全て欠損の列は固定値0（またはFillValue）で補完される
func (im *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewValueError("SimpleImputer.Fit", "empty data")
	}

	switch im.Strategy {
	case ImputeMean, ImputeMedian, ImputeConstant:
	default:
		return errors.NewValidationError("strategy", "must be mean, median or constant", string(im.Strategy))
	}

	im.NFeatures = c
	im.Statistics = make([]float64, c)

	if im.Strategy == ImputeConstant {
		for j := 0; j < c; j++ {
			im.Statistics[j] = im.FillValue
		}
		im.SetFitted()
		return nil
	}

	for j := 0; j < c; j++ {
		observed := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}

		if len(observed) == 0 {
			// 観測値が1つも無い列はFillValueにフォールバック
			errors.Warn(errors.NewDataConversionWarning(
				fmt.Sprintf("column %d", j), "constant",
				"no observed values to compute imputation statistic"))
			im.Statistics[j] = im.FillValue
			continue
		}

		switch im.Strategy {
		case ImputeMean:
			sum := 0.0
			for _, v := range observed {
				sum += v
			}
			im.Statistics[j] = sum / float64(len(observed))
		case ImputeMedian:
			sort.Float64s(observed)
			n := len(observed)
			if n%2 == 1 {
				im.Statistics[j] = observed[n/2]
			} else {
				im.Statistics[j] = (observed[n/2-1] + observed[n/2]) / 2
			}
		}
	}

	im.SetFitted()
	return nil
}

// Transform は学習した補完値で欠損値(NaN)を置き換える
func (im *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !im.IsFitted() {
		return nil, errors.NewNotFittedError("SimpleImputer", "Transform")
	}

	r, c := X.Dims()
	if c != im.NFeatures {
		return nil, errors.NewDimensionError("SimpleImputer.Transform", im.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				v = im.Statistics[j]
			}
			result.Set(i, j, v)
		}
	}

	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (im *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := im.Fit(X); err != nil {
		return nil, err
	}
	return im.Transform(X)
}

// ImputeStrings はカテゴリ列の欠損値を番兵値で置き換える
// ImputeConstant戦略でのみ使用できる。columns[j][i]はj列目・i行目の値
func (im *SimpleImputer) ImputeStrings(columns [][]string) ([][]string, error) {
	if im.Strategy != ImputeConstant {
		return nil, errors.NewValidationError(
			"strategy", "string imputation requires the constant strategy", string(im.Strategy))
	}

	fill := im.FillString
	if fill == "" {
		fill = "missing"
	}

	out := make([][]string, len(columns))
	for j, col := range columns {
		out[j] = make([]string, len(col))
		for i, v := range col {
			if dataset.IsMissing(v) {
				out[j][i] = fill
			} else {
				out[j][i] = v
			}
		}
	}

	return out, nil
}

// String は補完器の文字列表現を返す
func (im *SimpleImputer) String() string {
	if im.Strategy == ImputeConstant {
		return fmt.Sprintf("SimpleImputer(strategy=%s, fill_value=%g)", im.Strategy, im.FillValue)
	}
	return fmt.Sprintf("SimpleImputer(strategy=%s)", im.Strategy)
}
