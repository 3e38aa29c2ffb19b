package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) Hardware(summary HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(summary)
	}
}

func (c *CompositeReporter) FileStarted(summary FileSummary) {
	for _, r := range c.reporters {
		r.FileStarted(summary)
	}
}

func (c *CompositeReporter) StageProgress(update StageProgress) {
	for _, r := range c.reporters {
		r.StageProgress(update)
	}
}

func (c *CompositeReporter) Probe(summary ProbeSummary) {
	for _, r := range c.reporters {
		r.Probe(summary)
	}
}

func (c *CompositeReporter) SearchConfig(summary SearchConfigSummary) {
	for _, r := range c.reporters {
		r.SearchConfig(summary)
	}
}

func (c *CompositeReporter) SearchStarted(maxIterations int) {
	for _, r := range c.reporters {
		r.SearchStarted(maxIterations)
	}
}

func (c *CompositeReporter) SearchProgress(progress SearchProgress) {
	for _, r := range c.reporters {
		r.SearchProgress(progress)
	}
}

func (c *CompositeReporter) QualityComplete(summary QualitySummary) {
	for _, r := range c.reporters {
		r.QualityComplete(summary)
	}
}

func (c *CompositeReporter) SearchComplete(summary SearchOutcome) {
	for _, r := range c.reporters {
		r.SearchComplete(summary)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) BatchStarted(info BatchStartInfo) {
	for _, r := range c.reporters {
		r.BatchStarted(info)
	}
}

func (c *CompositeReporter) FileProgress(context FileProgressContext) {
	for _, r := range c.reporters {
		r.FileProgress(context)
	}
}

func (c *CompositeReporter) BatchComplete(summary BatchSummary) {
	for _, r := range c.reporters {
		r.BatchComplete(summary)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
