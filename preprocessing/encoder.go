package preprocessing

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/rainierlab/crimecensus/core/model"
	"github.com/rainierlab/crimecensus/pkg/errors"
)

// OneHotEncoder はカテゴリ特徴量をOne-Hotベクトルに変換するエンコーダー
// 文字列の列集合を受け取り、学習した語彙に基づいて0/1の行列を生成する
type OneHotEncoder struct {
	model.BaseEstimator

	// HandleUnknown がtrueの場合、未知カテゴリは全て0のベクトルになる
	// falseの場合、未知カテゴリはエラーを返す
	HandleUnknown bool

	// Categories は列ごとの学習済みカテゴリ（ソート済み）
	Categories [][]string

	// index[j][cat] = j列目のcatに対応する出力列のオフセット
	index []map[string]int

	// NFeatures は入力列の数
	NFeatures int

	// NOutputs は出力行列の列数（全カテゴリ数の合計）
	NOutputs int
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewOneHotEncoder(true)
//	err := enc.FitStrings(columns)
//	X, err := enc.TransformStrings(columns)
func NewOneHotEncoder(handleUnknown bool) *OneHotEncoder {
	return &OneHotEncoder{HandleUnknown: handleUnknown}
}

// FitStrings は列ごとのカテゴリ語彙を学習する
// columns[j][i] はj列目・i行目の値を表す。全列の行数は一致している必要がある
func (e *OneHotEncoder) FitStrings(columns [][]string) error {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewValueError("OneHotEncoder.FitStrings", "empty data")
	}

	nRows := len(columns[0])
	for j, col := range columns {
		if len(col) != nRows {
			return errors.NewDimensionError(fmt.Sprintf("OneHotEncoder.FitStrings column %d", j), nRows, len(col), 0)
		}
	}

	e.NFeatures = len(columns)
	e.Categories = make([][]string, e.NFeatures)
	e.index = make([]map[string]int, e.NFeatures)
	e.NOutputs = 0

	for j, col := range columns {
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v] = struct{}{}
		}

		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)

		e.Categories[j] = cats
		e.index[j] = make(map[string]int, len(cats))
		for k, v := range cats {
			e.index[j][v] = e.NOutputs + k
		}
		e.NOutputs += len(cats)
	}

	e.SetFitted()
	return nil
}

// TransformStrings は学習済み語彙に基づいてOne-Hot行列を生成する
func (e *OneHotEncoder) TransformStrings(columns [][]string) (mat.Matrix, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "TransformStrings")
	}

	if len(columns) != e.NFeatures {
		return nil, errors.NewDimensionError("OneHotEncoder.TransformStrings", e.NFeatures, len(columns), 1)
	}
	if len(columns[0]) == 0 {
		return nil, errors.NewValueError("OneHotEncoder.TransformStrings", "empty data")
	}

	nRows := len(columns[0])
	result := mat.NewDense(nRows, e.NOutputs, nil)

	for j, col := range columns {
		if len(col) != nRows {
			return nil, errors.NewDimensionError(fmt.Sprintf("OneHotEncoder.TransformStrings column %d", j), nRows, len(col), 0)
		}
		for i, v := range col {
			outCol, ok := e.index[j][v]
			if !ok {
				if e.HandleUnknown {
					// 未知カテゴリは全て0のまま
					continue
				}
				return nil, errors.NewValidationError(
					fmt.Sprintf("column %d", j), "unknown category", v)
			}
			result.Set(i, outCol, 1)
		}
	}

	return result, nil
}

// matrixColumns は数値行列を列ごとのカテゴリ文字列に変換する
func matrixColumns(X mat.Matrix) [][]string {
	r, c := X.Dims()
	columns := make([][]string, c)
	for j := 0; j < c; j++ {
		col := make([]string, r)
		for i := 0; i < r; i++ {
			col[i] = strconv.FormatFloat(X.At(i, j), 'g', -1, 64)
		}
		columns[j] = col
	}
	return columns
}

// Fit は数値コード化されたカテゴリ行列から語彙を学習する
// (Transformerインターフェース向けのアダプター)
func (e *OneHotEncoder) Fit(X mat.Matrix) error {
	return e.FitStrings(matrixColumns(X))
}

// Transform は数値コード化されたカテゴリ行列をOne-Hot行列に変換する
func (e *OneHotEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	return e.TransformStrings(matrixColumns(X))
}

// FitTransform はFitとTransformを同時に実行する
func (e *OneHotEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// FitTransformStrings は学習と変換を同時に実行する
func (e *OneHotEncoder) FitTransformStrings(columns [][]string) (mat.Matrix, error) {
	if err := e.FitStrings(columns); err != nil {
		return nil, err
	}
	return e.TransformStrings(columns)
}

// FeatureNames はプレフィックスを付けた出力列名を返す
// 例: prefix=["Offense"], カテゴリ=["ASSAULT","THEFT"] → ["Offense=ASSAULT","Offense=THEFT"]
func (e *OneHotEncoder) FeatureNames(prefixes []string) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "FeatureNames")
	}
	if len(prefixes) != e.NFeatures {
		return nil, errors.NewDimensionError("OneHotEncoder.FeatureNames", e.NFeatures, len(prefixes), 1)
	}

	names := make([]string, 0, e.NOutputs)
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, prefixes[j]+"="+c)
		}
	}
	return names, nil
}

// String はエンコーダーの文字列表現を返す
func (e *OneHotEncoder) String() string {
	if !e.IsFitted() {
		return fmt.Sprintf("OneHotEncoder(handle_unknown=%t)", e.HandleUnknown)
	}
	return fmt.Sprintf("OneHotEncoder(handle_unknown=%t, n_features=%d, n_outputs=%d)",
		e.HandleUnknown, e.NFeatures, e.NOutputs)
}
