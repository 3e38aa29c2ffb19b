package reporter

// Reporter defines the interface for progress reporting.
type Reporter interface {
	Hardware(summary HardwareSummary)
	FileStarted(summary FileSummary)
	StageProgress(update StageProgress)
	Probe(summary ProbeSummary)
	SearchConfig(summary SearchConfigSummary)
	SearchStarted(maxIterations int)
	SearchProgress(progress SearchProgress)
	QualityComplete(summary QualitySummary)
	SearchComplete(summary SearchOutcome)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	BatchStarted(info BatchStartInfo)
	FileProgress(context FileProgressContext)
	BatchComplete(summary BatchSummary)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)         {}
func (NullReporter) FileStarted(FileSummary)          {}
func (NullReporter) StageProgress(StageProgress)      {}
func (NullReporter) Probe(ProbeSummary)                {}
func (NullReporter) SearchConfig(SearchConfigSummary)  {}
func (NullReporter) SearchStarted(int)                 {}
func (NullReporter) SearchProgress(SearchProgress)     {}
func (NullReporter) QualityComplete(QualitySummary)    {}
func (NullReporter) SearchComplete(SearchOutcome)      {}
func (NullReporter) Warning(string)                    {}
func (NullReporter) Error(ReporterError)               {}
func (NullReporter) OperationComplete(string)          {}
func (NullReporter) BatchStarted(BatchStartInfo)       {}
func (NullReporter) FileProgress(FileProgressContext)  {}
func (NullReporter) BatchComplete(BatchSummary)        {}
func (NullReporter) Verbose(string)                    {}
