// Package reasoning 为排班分配生成可读的推荐理由
package reasoning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/canpai/canpai/pkg/model"
)

// 因子描述模板
var factorPhrases = map[string]string{
	"技能匹配": "技能完全符合岗位要求",
	"员工偏好": "符合其个人班次偏好",
	"公平性":  "有助于工时均衡分配",
	"可靠性":  "历史出勤记录可靠",
	"人力成本": "用工成本较低",
}

// Engine 推荐理由生成引擎
type Engine struct {
	maxScore float64
}

// NewEngine 创建理由引擎，maxScore 为评分器的满分
func NewEngine(maxScore float64) *Engine {
	if maxScore <= 0 {
		maxScore = 100
	}
	return &Engine{maxScore: maxScore}
}

// Confidence 把原始评分归一化为 [0,1] 的信心值
// 信心值随评分单调递增
func (e *Engine) Confidence(score float64) float64 {
	c := score / e.maxScore
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Explain 根据评分和因子生成信心值与推荐理由
// 取贡献最高的至多三个正向因子，相同输入必然产生相同输出
func (e *Engine) Explain(staffName string, score float64, factors []model.Factor) (float64, string) {
	confidence := e.Confidence(score)

	sorted := make([]model.Factor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Contribution != sorted[j].Contribution {
			return sorted[i].Contribution > sorted[j].Contribution
		}
		return sorted[i].Name < sorted[j].Name
	})

	var phrases []string
	for _, f := range sorted {
		if f.Contribution <= 0 || len(phrases) >= 3 {
			continue
		}
		phrase, ok := factorPhrases[f.Name]
		if !ok {
			phrase = f.Name
		}
		phrases = append(phrases, phrase)
	}

	if len(phrases) == 0 {
		return confidence, fmt.Sprintf("推荐 %s：满足所有硬性约束", staffName)
	}
	return confidence, fmt.Sprintf("推荐 %s：%s", staffName, strings.Join(phrases, "，"))
}

// ExplainUnresolved 为未能排满的班次生成原因说明
func ExplainUnresolved(shift *model.Shift, assigned int, reason string) string {
	missing := shift.RequiredCount - assigned
	if missing < 0 {
		missing = 0
	}
	return fmt.Sprintf("班次 %s %s-%s 缺少 %d 人：%s",
		shift.Date, shift.StartTime, shift.EndTime, missing, reason)
}
