package engine

func NewState(code, hostID, hostName string, rules Rules) State {
	return State{
		Code:        code,
		Phase:       PhaseWaiting,
		HostID:      hostID,
		HostName:    hostName,
		Submissions: map[string]Submission{},
		Scores:      map[string]int{},
		Votes:       map[string]Vote{},
		Rules:       rules,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

func cloneSubmissions(in map[string]Submission) map[string]Submission {
	out := make(map[string]Submission, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneVotes(in map[string]Vote) map[string]Vote {
	out := make(map[string]Vote, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func removeRequest(queue []JoinRequest, idx int) []JoinRequest {
	out := make([]JoinRequest, 0, len(queue)-1)
	out = append(out, queue[:idx]...)
	return append(out, queue[idx+1:]...)
}
