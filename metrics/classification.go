package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/rainierlab/crimecensus/pkg/errors"
)

// logLossEpsilon は対数損失計算時のクリッピング値（log(0)を避ける）
const logLossEpsilon = 1e-15

// checkBinaryPair は2値分類メトリクスの入力を検証する
// nilまたは空のベクトル、次元不一致、非2値ラベルはエラーになる
func checkBinaryPair(name string, yTrue, yPred *mat.VecDense) (int, error) {
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

	for i := 0; i < n; i++ {
		if v := yTrue.AtVec(i); v != 0 && v != 1 {
			return 0, errors.NewValueError(name, "labels must be binary (0 or 1)")
		}
	}

	return n, nil
}

// AUC はROC曲線下面積をランク統計量として計算する
// 同点の予測値には平均順位を割り当てる（scikit-learnと同じ挙動）
//
// AUC = (Σ rank(positive) - nPos*(nPos+1)/2) / (nPos * nNeg)
//
// 正例または負例しか存在しない場合、AUCは定義されないため
// UndefinedMetricWarningを発行して0.5を返す
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkBinaryPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// 予測値の昇順でインデックスをソート
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	// 同点グループに平均順位を割り当てる
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && yPred.AtVec(idx[j]) == yPred.AtVec(idx[i]) {
			j++
		}
		// 順位は1始まり。グループ[i, j)の平均順位
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j
	}

	var nPos, nNeg int
	var sumPosRanks float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			sumPosRanks += ranks[i]
		} else {
			nNeg++
		}
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"AUC", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	return (sumPosRanks - float64(nPos)*float64(nPos+1)/2.0) /
		(float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する
// 複数列の行列が与えられた場合は1列目のみを使用する
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}

	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}

	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return AUC(yTrueVec, yPredVec)
}

// BinaryLogLoss は2値交差エントロピー損失を計算する
// 予測確率は[ε, 1-ε]にクリッピングされ、log(0)を回避する
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkBinaryPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := yPred.AtVec(i)
		if p < logLossEpsilon {
			p = logLossEpsilon
		} else if p > 1-logLossEpsilon {
			p = 1 - logLossEpsilon
		}

		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}

	return sum / float64(n), nil
}

// checkLabelPair は多クラスラベル比較の入力を検証する
func checkLabelPair(name string, yTrue, yPred *mat.VecDense) (int, error) {
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

// ClassificationError は誤分類率（1 - accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkLabelPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// ConfusionCounts は2値分類の混同行列の要素
type ConfusionCounts struct {
	TruePositive  int
	TrueNegative  int
	FalsePositive int
	FalseNegative int
}

// ConfusionMatrix は2値の正解ラベルと予測ラベルから混同行列を計算する
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (ConfusionCounts, error) {
	var cm ConfusionCounts

	n, err := checkBinaryPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return cm, err
	}

	for i := 0; i < n; i++ {
		if v := yPred.AtVec(i); v != 0 && v != 1 {
			return cm, errors.NewValueError("ConfusionMatrix", "predictions must be binary (0 or 1)")
		}
	}

	for i := 0; i < n; i++ {
		switch {
		case yTrue.AtVec(i) == 1 && yPred.AtVec(i) == 1:
			cm.TruePositive++
		case yTrue.AtVec(i) == 0 && yPred.AtVec(i) == 0:
			cm.TrueNegative++
		case yTrue.AtVec(i) == 0 && yPred.AtVec(i) == 1:
			cm.FalsePositive++
		default:
			cm.FalseNegative++
		}
	}

	return cm, nil
}

// Precision は適合率 TP / (TP + FP) を計算する
// 分母が0の場合、UndefinedMetricWarningを発行して0を返す
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	denom := cm.TruePositive + cm.FalsePositive
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"Precision", "no predicted positives", 0))
		return 0, nil
	}

	return float64(cm.TruePositive) / float64(denom), nil
}

// Recall は再現率 TP / (TP + FN) を計算する
// 分母が0の場合、UndefinedMetricWarningを発行して0を返す
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	denom := cm.TruePositive + cm.FalseNegative
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"Recall", "no actual positives", 0))
		return 0, nil
	}

	return float64(cm.TruePositive) / float64(denom), nil
}

// F1Score は適合率と再現率の調和平均を計算する
// 適合率と再現率がともに0の場合は0を返す
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	p, err := Precision(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	r, err := Recall(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	if p+r == 0 {
		return 0, nil
	}

	return 2 * p * r / (p + r), nil
}
