package services

import (
	"fmt"
	"math"
	"sync"

	"eou/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// The ORT environment is process wide; every loaded model holds a reference.
var (
	ortMu   sync.Mutex
	ortRefs int
)

func acquireORT(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
		log.Debugf("onnxruntime environment initialized (library %q)", libPath)
	}
	ortRefs++
	return nil
}

func releaseORT() {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 {
		return
	}
	ortRefs--
	if ortRefs == 0 {
		if err := ort.DestroyEnvironment(); err != nil {
			log.Warnf("destroy onnxruntime environment: %v", err)
		}
	}
}

// onnxModel is a tokenizer plus a single-output ORT session. Run calls are
// serialized.
type onnxModel struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tk         *tokenizer.Tokenizer
	inputNames []string
	maxSeqLen  int
	// keepTail truncates from the front so the latest text survives.
	keepTail bool
}

func loadOnnxModel(libPath, modelPath, tokenizerPath string, maxSeqLen int, outputName string) (*onnxModel, error) {
	if err := acquireORT(libPath); err != nil {
		return nil, err
	}

	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		releaseORT()
		return nil, fmt.Errorf("load tokenizer %s: %w", tokenizerPath, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		releaseORT()
		return nil, fmt.Errorf("inspect model %s: %w", modelPath, err)
	}
	var inputNames []string
	for _, in := range inputs {
		switch in.Name {
		case "input_ids", "attention_mask", "token_type_ids":
			inputNames = append(inputNames, in.Name)
		default:
			releaseORT()
			return nil, fmt.Errorf("model %s has unsupported input %q", modelPath, in.Name)
		}
	}
	if len(outputs) == 0 {
		releaseORT()
		return nil, fmt.Errorf("model %s has no outputs", modelPath)
	}
	output := outputs[0].Name
	for _, o := range outputs {
		if o.Name == outputName {
			output = o.Name
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{output}, nil)
	if err != nil {
		releaseORT()
		return nil, fmt.Errorf("create onnx session for %s: %w", modelPath, err)
	}
	log.Infof("Loaded ONNX model %s (inputs %v, output %s)", modelPath, inputNames, output)

	return &onnxModel{session: session, tk: tk, inputNames: inputNames, maxSeqLen: maxSeqLen}, nil
}

// run tokenizes text and returns the flat output data with its shape.
func (m *onnxModel) run(text string) ([]float32, []int64, []int64, error) {
	enc, err := m.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := m.clip(toInt64(enc.GetIds()))
	mask := m.clip(toInt64(enc.GetAttentionMask()))
	types := m.clip(toInt64(enc.GetTypeIds()))
	if len(types) != len(ids) {
		types = make([]int64, len(ids))
	}
	if len(ids) == 0 {
		return nil, nil, nil, fmt.Errorf("tokenizer produced no tokens")
	}

	shape := ort.NewShape(1, int64(len(ids)))
	byName := map[string][]int64{"input_ids": ids, "attention_mask": mask, "token_type_ids": types}
	inputs := make([]ort.Value, 0, len(m.inputNames))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, name := range m.inputNames {
		t, err := ort.NewTensor(shape, byName[name])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil}
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, nil, nil, models.ErrModelNotLoaded
	}
	err = m.session.Run(inputs, outputs)
	m.mu.Unlock()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("onnx run: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	data := append([]float32(nil), out.GetData()...)
	return data, out.GetShape(), mask, nil
}

func (m *onnxModel) clip(tokens []int64) []int64 {
	if m.keepTail {
		return truncateTokensTail(tokens, m.maxSeqLen)
	}
	return truncateTokens(tokens, m.maxSeqLen)
}

func (m *onnxModel) loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	releaseORT()
	return err
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

// truncateTokens keeps the first maxLen-1 tokens and the final one, so a
// trailing special token survives.
func truncateTokens(tokens []int64, maxLen int) []int64 {
	if maxLen <= 0 || len(tokens) <= maxLen {
		return tokens
	}
	out := make([]int64, 0, maxLen)
	out = append(out, tokens[:maxLen-1]...)
	return append(out, tokens[len(tokens)-1])
}

// truncateTokensTail keeps the first token and the last maxLen-1, so a
// leading special token survives along with the most recent text.
func truncateTokensTail(tokens []int64, maxLen int) []int64 {
	if maxLen <= 0 || len(tokens) <= maxLen {
		return tokens
	}
	out := make([]int64, 0, maxLen)
	out = append(out, tokens[0])
	return append(out, tokens[len(tokens)-maxLen+1:]...)
}

// meanPool averages token vectors of a [1, seq, hidden] tensor where mask is set.
func meanPool(data []float32, seqLen, hidden int, mask []int64) []float32 {
	out := make([]float32, hidden)
	var count float32
	for t := 0; t < seqLen; t++ {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		count++
		row := data[t*hidden : (t+1)*hidden]
		for j, v := range row {
			out[j] += v
		}
	}
	if count == 0 {
		return out
	}
	for j := range out {
		out[j] /= count
	}
	return out
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := float64(logits[0])
	for _, v := range logits[1:] {
		maxV = math.Max(maxV, float64(v))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
