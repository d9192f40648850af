package event

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/model"
)

// AnyEvent 订阅全部事件类型
const AnyEvent = "*"

// EventProcessor 事件处理器接口
type EventProcessor interface {
	Process(row *model.EventModel, evt escrow.Event) error
	GetEventTypes() []string
}

// ProcessorManager 事件处理器管理器，一个事件类型可以有多个处理器
type ProcessorManager struct {
	mu         sync.RWMutex
	processors map[string][]EventProcessor
}

// NewProcessorManager 创建处理器管理器
func NewProcessorManager(processors ...EventProcessor) *ProcessorManager {
	manager := &ProcessorManager{
		processors: make(map[string][]EventProcessor),
	}
	for _, p := range processors {
		manager.RegisterProcessor(p)
	}
	return manager
}

// RegisterProcessor 注册事件处理器
func (pm *ProcessorManager) RegisterProcessor(processor EventProcessor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, eventType := range processor.GetEventTypes() {
		pm.processors[eventType] = append(pm.processors[eventType], processor)
		logger.Debug("Registered processor %T for event type: %s", processor, eventType)
	}
}

// GetProcessors 获取事件类型对应的处理器，包含订阅全部类型的处理器
func (pm *ProcessorManager) GetProcessors(eventType string) []EventProcessor {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]EventProcessor, 0, len(pm.processors[eventType])+len(pm.processors[AnyEvent]))
	out = append(out, pm.processors[eventType]...)
	out = append(out, pm.processors[AnyEvent]...)
	return out
}

// ProcessEvent 依次交给所有处理器，返回合并的错误
func (pm *ProcessorManager) ProcessEvent(row *model.EventModel, evt escrow.Event) error {
	var errs []error
	for _, p := range pm.GetProcessors(evt.Type) {
		if err := p.Process(row, evt); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// GetSupportedEventTypes 获取已注册的事件类型列表
func (pm *ProcessorManager) GetSupportedEventTypes() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	eventTypes := make([]string, 0, len(pm.processors))
	for eventType := range pm.processors {
		eventTypes = append(eventTypes, eventType)
	}
	sort.Strings(eventTypes)
	return eventTypes
}
