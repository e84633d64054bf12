package strategyconfig

import "time"

// DateLayout is the calendar date format used in run files
const DateLayout = "2006-01-02"

// Config는 백테스트 실행 한 건의 전체 설정
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Strategy   Strategy   `yaml:"strategy" json:"strategy"`
	Period     Period     `yaml:"period" json:"period"`
	Simulation Simulation `yaml:"simulation" json:"simulation"`
	Universe   Universe   `yaml:"universe" json:"universe"`
	Output     Output     `yaml:"output" json:"output"`
}

// Meta 메타 정보
type Meta struct {
	RunID   string `yaml:"run_id" json:"run_id"`
	Version string `yaml:"version" json:"version"`
}

// Strategy 전략 이름 + 파라미터
type Strategy struct {
	Name   string             `yaml:"name" json:"name"`
	Params map[string]float64 `yaml:"params" json:"params"` // json.Marshal sorts keys
}

// Period 시뮬레이션 구간 (양 끝 포함)
type Period struct {
	From string `yaml:"from" json:"from"` // YYYY-MM-DD
	To   string `yaml:"to" json:"to"`     // YYYY-MM-DD
}

// Start parses From
func (p Period) Start() (time.Time, error) {
	return time.Parse(DateLayout, p.From)
}

// End parses To
func (p Period) End() (time.Time, error) {
	return time.Parse(DateLayout, p.To)
}

// Simulation 장부 초기값; 0은 기본값 사용
type Simulation struct {
	InitialCapital    float64 `yaml:"initial_capital" json:"initial_capital"`
	EligibilityWindow int     `yaml:"eligibility_window" json:"eligibility_window"`
}

// Universe 종목 풀
type Universe struct {
	Source  string   `yaml:"source" json:"source"` // sp500 | static
	Tickers []string `yaml:"tickers" json:"tickers"`
	Limit   int      `yaml:"limit" json:"limit"` // 0 = 전체
}

// Output 결과 출력
type Output struct {
	CSV  string `yaml:"csv" json:"csv"`
	Save bool   `yaml:"save" json:"save"`
}
