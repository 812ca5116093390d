package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rainierlab/crimecensus/pkg/errors"
)

// checkNumericPair は回帰メトリクスの入力を検証する
// nilまたは空のベクトル、次元不一致はエラーになる
func checkNumericPair(name string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(name, "nil vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(name, "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError(name, n, yPred.Len(), 0)
	}

	return n, nil
}

// vecMean はベクトルの算術平均を返す
func vecMean(v *mat.VecDense) float64 {
	var sum float64
	for i := 0; i < v.Len(); i++ {
		sum += v.AtVec(i)
	}
	return sum / float64(v.Len())
}

// MSE は平均二乗誤差を計算する
// 区画ごとの犯罪件数予測のような連続値予測の基本誤差指標
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkNumericPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += d * d
	}

	return sum / float64(n), nil
}

// MSEMatrix は n×1 行列の入力に対してMSEを計算する
// 複数列の行列はエラーになる
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("MSEMatrix", "nil matrix")
	}

	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return MSE(yTrueVec, yPredVec)
}

// RMSE は平方根平均二乗誤差を計算する
// 単位が目的変数と揃うため件数・金額の誤差報告に使う
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkNumericPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// R2Score は決定係数R²を計算する
// 1が完全予測、0が平均値予測と同等、負は平均値予測より悪い
// yTrueに分散が無い場合は定義できないためエラーを返す
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkNumericPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	mean := vecMean(yTrue)

	var tss, rss float64
	for i := 0; i < n; i++ {
		yt := yTrue.AtVec(i)
		tss += (yt - mean) * (yt - mean)
		d := yt - yPred.AtVec(i)
		rss += d * d
	}

	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "no variance in yTrue")
	}

	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する
// 実測値が0の要素はゼロ除算になるため計算から除外する
// 全要素が0の場合はエラーを返す
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkNumericPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	valid := 0
	for i := 0; i < n; i++ {
		yt := yTrue.AtVec(i)
		if yt == 0 {
			continue
		}
		sum += math.Abs(yt-yPred.AtVec(i)) / math.Abs(yt)
		valid++
	}

	if valid == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}

	return sum / float64(valid) * 100, nil
}

// ExplainedVarianceScore は説明分散スコア 1 - Var(yTrue-yPred) / Var(yTrue) を計算する
// R²と違い、予測の一定バイアスはスコアを下げない
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkNumericPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	trueMean := vecMean(yTrue)

	var errMean float64
	for i := 0; i < n; i++ {
		errMean += yTrue.AtVec(i) - yPred.AtVec(i)
	}
	errMean /= float64(n)

	var varTrue, varErr float64
	for i := 0; i < n; i++ {
		yt := yTrue.AtVec(i)
		e := yt - yPred.AtVec(i)
		varTrue += (yt - trueMean) * (yt - trueMean)
		varErr += (e - errMean) * (e - errMean)
	}

	if varTrue == 0 {
		return 0, errors.NewValueError("ExplainedVarianceScore", "no variance in yTrue")
	}

	return 1 - varErr/varTrue, nil
}
