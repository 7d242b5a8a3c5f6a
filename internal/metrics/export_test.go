package metrics

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}
