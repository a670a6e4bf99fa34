package engine

import (
	"github.com/shaiso/Caseflow/internal/domain"
)

// StartStepNames возвращает имена стартовых шагов — шагов без входящих
// переходов. Переходы на несуществующие шаги игнорируются (они отдельно
// репортятся валидатором).
func StartStepNames(def *domain.WorkflowDefinition) []string {
	incoming := make(map[string]int, len(def.Steps))
	known := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		known[def.Steps[i].Name] = true
	}
	for i := range def.Steps {
		for _, tr := range def.Steps[i].Transitions {
			if known[tr.TargetStepName] {
				incoming[tr.TargetStepName]++
			}
		}
	}

	starts := make([]string, 0, 1)
	for i := range def.Steps {
		if incoming[def.Steps[i].Name] == 0 {
			starts = append(starts, def.Steps[i].Name)
		}
	}
	return starts
}

// EndStepNames возвращает имена конечных шагов — шагов без исходящих
// переходов.
func EndStepNames(def *domain.WorkflowDefinition) []string {
	ends := make([]string, 0, 1)
	for i := range def.Steps {
		if len(def.Steps[i].Transitions) == 0 {
			ends = append(ends, def.Steps[i].Name)
		}
	}
	return ends
}

// UnreachableSteps возвращает имена шагов, не достижимых ни из одного
// стартового шага (обход в ширину).
func UnreachableSteps(def *domain.WorkflowDefinition) []string {
	steps := make(map[string]*domain.WorkflowStep, len(def.Steps))
	for i := range def.Steps {
		steps[def.Steps[i].Name] = &def.Steps[i]
	}

	visited := make(map[string]bool, len(def.Steps))
	queue := StartStepNames(def)
	for _, name := range queue {
		visited[name] = true
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		step, ok := steps[name]
		if !ok {
			continue
		}
		for _, tr := range step.Transitions {
			if !visited[tr.TargetStepName] && steps[tr.TargetStepName] != nil {
				visited[tr.TargetStepName] = true
				queue = append(queue, tr.TargetStepName)
			}
		}
	}

	unreachable := make([]string, 0)
	for i := range def.Steps {
		if !visited[def.Steps[i].Name] {
			unreachable = append(unreachable, def.Steps[i].Name)
		}
	}
	return unreachable
}

// FindCycle ищет цикл в графе переходов обходом в глубину со стеком
// рекурсии. Возвращает имена шагов цикла или nil, если граф ацикличен.
func FindCycle(def *domain.WorkflowDefinition) []string {
	steps := make(map[string]*domain.WorkflowStep, len(def.Steps))
	for i := range def.Steps {
		steps[def.Steps[i].Name] = &def.Steps[i]
	}

	visited := make(map[string]bool, len(def.Steps))
	onStack := make(map[string]bool, len(def.Steps))

	var cycle []string

	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)

		step := steps[name]
		if step != nil {
			for _, tr := range step.Transitions {
				target := tr.TargetStepName
				if steps[target] == nil {
					continue
				}
				if onStack[target] {
					// Цикл найден — вырезаем его из пути
					for i, n := range path {
						if n == target {
							cycle = append([]string{}, path[i:]...)
							break
						}
					}
					return true
				}
				if !visited[target] && visit(target, path) {
					return true
				}
			}
		}

		onStack[name] = false
		return false
	}

	for i := range def.Steps {
		name := def.Steps[i].Name
		if !visited[name] && visit(name, nil) {
			return cycle
		}
	}
	return nil
}
