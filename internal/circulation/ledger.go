package circulation

// 管理者操作で許可する蔵書ステータス遷移。
// available <-> issued は貸出/返却でのみ動く。
var adminCopyTransitions = map[CopyStatus]map[CopyStatus]bool{
	CopyAvailable:   {CopyMaintenance: true, CopyLost: true},
	CopyIssued:      {CopyMaintenance: true, CopyLost: true},
	CopyMaintenance: {CopyAvailable: true, CopyLost: true},
	CopyLost:        {CopyAvailable: true, CopyMaintenance: true},
}

func canSetCopyStatus(from, to CopyStatus) bool {
	return adminCopyTransitions[from][to]
}
