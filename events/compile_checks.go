package events

var _ DeviceEventReporter = (*Reporter)(nil)
