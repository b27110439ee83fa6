package protocol

// Имена каналов по умолчанию
const (
	DefaultTaskChannel    = "task_queue"
	DefaultResultChannel  = "result_queue"
	DefaultBarrierChannel = "benchmark_channel"
	DefaultReadyChannel   = "ready_channel"
	DefaultClaimChannel   = "claim_channel"
	DefaultDoneChannel    = "done_channel"
)

// Channels набор логических каналов одного прогона. Передается в каждый
// компонент при создании, поэтому несколько прогонов с разными
// пространствами имен не пересекаются.
type Channels struct {
	Tasks   string
	Results string
	Barrier string
	Ready   string
	Claims  string
	Done    string
}

// NewChannels возвращает каналы с префиксом namespace. Пустой namespace
// дает имена по умолчанию.
func NewChannels(namespace string) Channels {
	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}
	return Channels{
		Tasks:   prefix + DefaultTaskChannel,
		Results: prefix + DefaultResultChannel,
		Barrier: prefix + DefaultBarrierChannel,
		Ready:   prefix + DefaultReadyChannel,
		Claims:  prefix + DefaultClaimChannel,
		Done:    prefix + DefaultDoneChannel,
	}
}

// ReleaseFor персональный канал барьера воркера в широковещательном режиме
func (c Channels) ReleaseFor(workerID string) string {
	return c.Barrier + ":" + workerID
}

// All возвращает все общие каналы прогона
func (c Channels) All() []string {
	return []string{c.Tasks, c.Results, c.Barrier, c.Ready, c.Claims, c.Done}
}
