// Package solver 提供排班求解器
package solver

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/canpai/canpai/pkg/errors"
	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/model"
	"github.com/canpai/canpai/pkg/scheduler/availability"
	"github.com/canpai/canpai/pkg/scheduler/constraint"
	"github.com/canpai/canpai/pkg/scheduler/constraint/builtin"
	"github.com/canpai/canpai/pkg/scheduler/reasoning"
	"github.com/canpai/canpai/pkg/scheduler/scoring"
)

// Solver 求解器接口
type Solver interface {
	// Solve 生成排班方案
	Solve(ctx context.Context, input *Input, opts Options) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Input 求解输入
type Input struct {
	BizID       uuid.UUID                     `json:"biz_id"`
	Range       model.DateRange               `json:"range"`
	Staff       []*model.Staff                `json:"staff"`
	Shifts      []*model.Shift                `json:"shifts"`
	Rules       []*model.SchedulingConstraint `json:"rules,omitempty"`
	Preferences []*model.StaffPreference      `json:"preferences,omitempty"`
	Events      []*model.SpecialEvent         `json:"events,omitempty"`
}

// Options 求解选项
type Options struct {
	Timeout      time.Duration       `json:"timeout"`
	Weights      scoring.Weights     `json:"weights"`
	Availability availability.Policy `json:"availability"`
	Workers      int                 `json:"workers"`
}

// DefaultOptions 默认求解选项
func DefaultOptions() Options {
	return Options{
		Timeout: 30 * time.Second,
		Weights: scoring.DefaultWeights(),
		Workers: 4,
	}
}

// 未排满原因
const (
	ReasonNoQualified  = "缺少具备所需技能的在岗员工"
	ReasonNoAvailable  = "候选员工可用时间冲突"
	ReasonOverLimits   = "符合条件的员工已达工时或休息限制"
	ReasonSolveTimeout = "求解超时，该班次未处理"
)

// UnresolvedShift 未能排满的班次
type UnresolvedShift struct {
	ShiftID uuid.UUID `json:"shift_id"`
	Date    string    `json:"date"`
	Missing int       `json:"missing"`
	Reason  string    `json:"reason"`
	Message string    `json:"message"`
}

// Statistics 排班统计
type Statistics struct {
	TotalSlots     int     `json:"total_slots"`
	FilledSlots    int     `json:"filled_slots"`
	FillRate       float64 `json:"fill_rate"`
	TotalHours     float64 `json:"total_hours"`
	AvgHours       float64 `json:"avg_hours_per_staff"`
	CandidateEvals int     `json:"candidate_evals"`
}

// Result 求解结果
type Result struct {
	Assignments       []*model.DraftAssignment `json:"assignments"`
	Unresolved        []*UnresolvedShift       `json:"unresolved"`
	OverallConfidence float64                  `json:"overall_confidence"`
	Evaluation        *constraint.Result       `json:"evaluation"`
	Statistics        *Statistics              `json:"statistics"`
	Duration          time.Duration            `json:"duration"`
	Partial           bool                     `json:"partial"`
	TimedOut          bool                     `json:"timed_out"`
}

// GreedySolver 贪心求解器
// 班次按 (日期, 开始时间, ID) 排序逐个处理，每个空位选取评分最高的合格候选，
// 分配后复验硬约束，违反则回退并尝试次优候选
type GreedySolver struct {
	logger *logger.SchedulerLogger
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// validate 检查求解输入
func (s *GreedySolver) validate(input *Input) error {
	if input == nil {
		return apperrors.InvalidInput("input", "求解输入不能为空")
	}
	if err := input.Range.Validate(); err != nil {
		return apperrors.InvalidInput("range", err.Error())
	}
	for _, shift := range input.Shifts {
		if err := shift.Validate(); err != nil {
			return apperrors.InvalidInput("shifts", err.Error())
		}
		if !input.Range.ContainsDate(shift.Date) {
			return apperrors.InvalidInput("shifts", "班次 "+shift.ID.String()+" 日期超出排班范围")
		}
	}
	for _, rule := range input.Rules {
		if rule.Payload == nil {
			continue
		}
		if err := rule.Payload.Validate(); err != nil {
			return apperrors.InvalidInput("rules", err.Error())
		}
	}
	return nil
}

// Solve 使用贪心算法生成排班
func (s *GreedySolver) Solve(ctx context.Context, input *Input, opts Options) (*Result, error) {
	startTime := time.Now()

	if err := s.validate(input); err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if opts.Weights.Total() == 0 {
		opts.Weights = scoring.DefaultWeights()
	}

	s.logger.SolveStart(input.BizID.String(), len(input.Staff), len(input.Shifts))

	result := &Result{
		Assignments: make([]*model.DraftAssignment, 0),
		Unresolved:  make([]*UnresolvedShift, 0),
		Statistics:  &Statistics{},
	}

	activeStaff := activeOnly(input.Staff)
	if len(activeStaff) == 0 {
		return nil, apperrors.InsufficientStaff("没有在岗员工可参与排班")
	}
	if len(input.Shifts) == 0 {
		result.Duration = time.Since(startTime)
		result.OverallConfidence = 0
		result.Evaluation = &constraint.Result{IsValid: true, Score: 100}
		return result, nil
	}

	// 组装约束、评分器与理由引擎
	cm := constraint.NewManager()
	builtin.Build(cm, input.Rules, input.Preferences)
	scorer := scoring.NewRuleScorer(opts.Weights, input.Preferences, substitutesFromRules(input.Rules))
	engine := reasoning.NewEngine(scorer.MaxScore())
	resolver := availability.NewResolver(opts.Availability)
	parallel := newParallelScorer(opts.Workers, scorer)

	skillCheck, _ := cm.GetConstraint(model.ConstraintSkillMatch).(*builtin.SkillMatchConstraint)

	schedCtx := constraint.NewContext(input.BizID, input.Range)
	schedCtx.SetStaff(activeStaff)
	schedCtx.SetShifts(input.Shifts)

	// 按日期、开始时间、ID 排序保证结果确定
	shifts := make([]*model.Shift, len(input.Shifts))
	copy(shifts, input.Shifts)
	sort.Slice(shifts, func(i, j int) bool {
		si, sj := shifts[i], shifts[j]
		if si.Date != sj.Date {
			return si.Date < sj.Date
		}
		if si.StartTime != sj.StartTime {
			return si.StartTime < sj.StartTime
		}
		return si.ID.String() < sj.ID.String()
	})

	timedOut := false
	for _, shift := range shifts {
		if ctx.Err() != nil {
			timedOut = true
		}
		required := model.EffectiveRequired(shift, input.Events)
		result.Statistics.TotalSlots += required

		if timedOut {
			result.Unresolved = append(result.Unresolved, &UnresolvedShift{
				ShiftID: shift.ID,
				Date:    shift.Date,
				Missing: required,
				Reason:  ReasonSolveTimeout,
				Message: reasoning.ExplainUnresolved(shift, 0, ReasonSolveTimeout),
			})
			continue
		}

		assigned := s.fillShift(ctx, schedCtx, shift, required, cm, skillCheck, resolver, parallel, engine, result)
		result.Statistics.FilledSlots += assigned
	}

	result.Evaluation = cm.Evaluate(schedCtx)
	result.Duration = time.Since(startTime)
	result.Partial = len(result.Unresolved) > 0
	result.TimedOut = timedOut
	result.OverallConfidence = meanConfidence(result.Assignments)
	s.fillStatistics(schedCtx, result)

	if timedOut {
		s.logger.SolveTimeout(input.BizID.String(), len(result.Assignments))
		return result, apperrors.SolverTimeout("排班求解超时，已返回部分结果").
			WithField("assigned", len(result.Assignments)).
			WithField("unresolved", len(result.Unresolved))
	}

	s.logger.SolveComplete(input.BizID.String(), result.Duration,
		len(result.Assignments), len(result.Unresolved), result.OverallConfidence)

	if len(result.Assignments) == 0 {
		return result, apperrors.InsufficientStaff("没有任何班次能够被排满")
	}
	return result, nil
}

// fillShift 为单个班次填充空位，返回成功分配数
func (s *GreedySolver) fillShift(
	ctx context.Context,
	schedCtx *constraint.Context,
	shift *model.Shift,
	required int,
	cm *constraint.Manager,
	skillCheck *builtin.SkillMatchConstraint,
	resolver *availability.Resolver,
	parallel *parallelScorer,
	engine *reasoning.Engine,
	result *Result,
) int {
	qualified := 0
	available := 0
	var pool []*model.Staff

	for _, staff := range schedCtx.Staff {
		if skillCheck != nil && !skillCheck.Qualified(staff, shift) {
			continue
		}
		qualified++
		if ok, reason := resolver.IsAvailable(staff, shift); !ok {
			s.logger.ConstraintViolation("可用性", staff.Name+": "+reason)
			continue
		}
		available++
		pool = append(pool, staff)
	}

	assigned := 0
	for slot := 0; slot < required; slot++ {
		candidates := parallel.scoreCandidates(ctx, schedCtx, pool, shift)
		result.Statistics.CandidateEvals += len(candidates)

		picked := false
		for _, cand := range candidates {
			if schedCtx.HasAssignment(shift.ID, cand.staff.ID) {
				continue
			}

			assignment := &model.DraftAssignment{
				BaseModel:   model.BaseModel{ID: uuid.New()},
				ShiftID:     shift.ID,
				StaffID:     cand.staff.ID,
				AIGenerated: true,
				Factors:     cand.factors,
			}
			if ok, violations := cm.CanAssign(schedCtx, assignment); !ok {
				for _, v := range violations {
					s.logger.ConstraintViolation(v.ConstraintName, v.Message)
				}
				continue
			}

			// 试探性加入后复验全局硬约束，违反则回退
			schedCtx.AddAssignment(assignment)
			if ok, _ := cm.EvaluateHard(schedCtx); !ok {
				schedCtx.RemoveAssignment(assignment.ID)
				continue
			}

			assignment.Confidence, assignment.Reasoning = engine.Explain(cand.staff.Name, cand.score, cand.factors)
			result.Assignments = append(result.Assignments, assignment)
			assigned++
			picked = true
			break
		}

		if !picked {
			break
		}
	}

	if assigned < required {
		reason := ReasonOverLimits
		switch {
		case qualified == 0:
			reason = ReasonNoQualified
		case available == 0:
			reason = ReasonNoAvailable
		}
		result.Unresolved = append(result.Unresolved, &UnresolvedShift{
			ShiftID: shift.ID,
			Date:    shift.Date,
			Missing: required - assigned,
			Reason:  reason,
			Message: reasoning.ExplainUnresolved(shift, assigned, reason),
		})
	}
	return assigned
}

// fillStatistics 汇总工时统计
func (s *GreedySolver) fillStatistics(schedCtx *constraint.Context, result *Result) {
	stats := result.Statistics
	if stats.TotalSlots > 0 {
		stats.FillRate = float64(stats.FilledSlots) / float64(stats.TotalSlots) * 100
	}

	working := 0
	for _, staff := range schedCtx.Staff {
		hours := schedCtx.PlannedHours(staff.ID)
		if hours > 0 {
			working++
			stats.TotalHours += hours
		}
	}
	if working > 0 {
		stats.AvgHours = stats.TotalHours / float64(working)
	}
}

// activeOnly 过滤出在岗员工
func activeOnly(staff []*model.Staff) []*model.Staff {
	var active []*model.Staff
	for _, s := range staff {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	return active
}

// substitutesFromRules 从技能匹配规则中提取替代表
func substitutesFromRules(rules []*model.SchedulingConstraint) map[string][]string {
	for _, rule := range rules {
		if rule.Type != model.ConstraintSkillMatch || !rule.Active {
			continue
		}
		if p, ok := rule.Payload.(*model.SkillMatchPayload); ok && p.AllowSubstitution {
			return p.Substitutes
		}
	}
	return nil
}

// meanConfidence 计算整体信心值（各分配信心值的均值）
func meanConfidence(assignments []*model.DraftAssignment) float64 {
	if len(assignments) == 0 {
		return 0
	}
	var total float64
	for _, a := range assignments {
		total += a.Confidence
	}
	return total / float64(len(assignments))
}
