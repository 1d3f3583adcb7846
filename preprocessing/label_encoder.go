package preprocessing

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	"github.com/YuminosukeSato/cropadvisor/core/model"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダ
// 文字列ラベルを 0..n_classes-1 の整数コードに変換する。
// クラスは辞書順にソートされるため、コードの割り当ては学習データの並びに依存しない。
type LabelEncoder struct {
	state   *model.StateManager
	classes []string
	index   map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewLabelEncoder()
//	codes, err := enc.FitTransform([]string{"rice", "maize", "rice"})
//	// codes == [1 0 1]
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はラベルの一覧からクラスを学習する
func (e *LabelEncoder) Fit(y []string) error {
	if len(y) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{}, len(y))
	classes := make([]string, 0)
	for _, label := range y {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		classes = append(classes, label)
	}
	sort.Strings(classes)

	e.setClasses(classes)
	e.state.SetFitted(1, len(y))
	return nil
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
}

// Transform はラベルを整数コードに変換する
// 未知のラベルが含まれる場合は ValueError を返す。
func (e *LabelEncoder) Transform(y []string) ([]int, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}

	codes := make([]int, len(y))
	var unseen []string
	for i, label := range y {
		code, ok := e.index[label]
		if !ok {
			unseen = append(unseen, label)
			continue
		}
		codes[i] = code
	}
	if len(unseen) > 0 {
		return nil, errors.NewValueError("LabelEncoder.Transform",
			fmt.Sprintf("y contains previously unseen labels: %v", unseen))
	}
	return codes, nil
}

// FitTransform は学習と変換を一度に行う
func (e *LabelEncoder) FitTransform(y []string) ([]int, error) {
	if err := e.Fit(y); err != nil {
		return nil, err
	}
	return e.Transform(y)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}

	labels := make([]string, len(codes))
	for i, code := range codes {
		if code < 0 || code >= len(e.classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d is out of range [0, %d)", code, len(e.classes)))
		}
		labels[i] = e.classes[code]
	}
	return labels, nil
}

// Classes は学習済みクラスをソート順で返す（コピー）
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Has はラベルが学習済みクラスに含まれるかを返す
func (e *LabelEncoder) Has(label string) bool {
	_, ok := e.index[label]
	return ok
}

// IsFitted はエンコーダが学習済みかを返す
func (e *LabelEncoder) IsFitted() bool {
	return e.state != nil && e.state.IsFitted()
}

// String はエンコーダの文字列表現を返す
func (e *LabelEncoder) String() string {
	if !e.IsFitted() {
		return "LabelEncoder()"
	}
	return fmt.Sprintf("LabelEncoder(n_classes=%d)", len(e.classes))
}

type labelEncoderState struct {
	Classes []string
	State   model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (e *LabelEncoder) GobEncode() ([]byte, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "GobEncode")
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(labelEncoderState{Classes: e.classes, State: e.state.GetState()}); err != nil {
		return nil, errors.Wrap(err, "LabelEncoder: encode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (e *LabelEncoder) GobDecode(data []byte) error {
	var st labelEncoderState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "LabelEncoder: decode")
	}
	if len(st.Classes) == 0 {
		return errors.NewValueError("LabelEncoder.GobDecode", "no classes")
	}
	e.state = model.NewStateManager()
	e.state.SetState(st.State)
	e.setClasses(st.Classes)
	return nil
}
