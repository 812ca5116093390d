// Package model は変換器(Transformer)の共通基盤を提供する
package model

import "gonum.org/v1/gonum/mat"

// EstimatorState は変換器の学習状態を表す
type EstimatorState int

const (
	// NotFitted は未学習の状態
	NotFitted EstimatorState = iota
	// Fitted は学習済みの状態
	Fitted
)

// BaseEstimator は全ての変換器の基底となる構造体
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted は学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted は学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset は初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}

// Fitter は学習可能な変換器のインターフェース
type Fitter interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
