package enhancer

import (
	"fmt"
	"regexp"

	"github.com/antchfx/xpath"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Rule связывает шаблон адреса статьи с XPath-выражением,
// выбирающим содержимое на странице. Выражение проверяется при создании
// правила, а компилируется заново при каждом вычислении: скомпилированный
// *xpath.Expr хранит состояние обхода и не годится для общих горутин.
type Rule struct {
	Pattern  *regexp.Regexp
	Selector string
}

// RuleTable - упорядоченный список правил. Побеждает первое совпавшее
// правило, поэтому порядок сохраняется ровно таким, как в конфигурации.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable компилирует шаблоны и XPath-выражения в порядке их
// следования в rules. Ошибка в любом правиле - ошибка конфигурации.
func NewRuleTable(rules *orderedmap.OrderedMap[string, string]) (*RuleTable, error) {
	table := &RuleTable{}
	if rules == nil {
		return table, nil
	}
	table.rules = make([]Rule, 0, rules.Len())
	for pair := rules.Oldest(); pair != nil; pair = pair.Next() {
		rule, err := NewRule(pair.Key, pair.Value)
		if err != nil {
			return nil, err
		}
		table.rules = append(table.rules, rule)
	}
	return table, nil
}

// NewRule компилирует одно правило.
func NewRule(pattern, selector string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid url pattern %q: %w", pattern, err)
	}
	if _, err := xpath.Compile(selector); err != nil {
		return Rule{}, fmt.Errorf("invalid xpath selector %q for pattern %q: %w", selector, pattern, err)
	}
	return Rule{Pattern: re, Selector: selector}, nil
}

// Match возвращает первое правило, шаблон которого совпадает с url.
func (t *RuleTable) Match(url string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	for _, rule := range t.rules {
		if rule.Pattern.MatchString(url) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Len возвращает количество правил.
func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}
