package model

import "testing"

func TestNormalizePair(t *testing.T) {
	low1, high1 := NormalizePair("U2", "U1")
	low2, high2 := NormalizePair("U1", "U2")
	if low1 != low2 || high1 != high2 {
		t.Errorf("归一化不对称: (%s,%s) vs (%s,%s)", low1, high1, low2, high2)
	}
	if low1 != "U1" || high1 != "U2" {
		t.Errorf("字典序错误: (%s,%s)", low1, high1)
	}
}

func TestConversationViewHelpers(t *testing.T) {
	conv := &Conversation{
		ParticipantLow:  "U1",
		ParticipantHigh: "U2",
		UnreadCountLow:  3,
		UnreadCountHigh: 7,
	}

	if conv.UnreadCountFor("U1") != 3 || conv.UnreadCountFor("U2") != 7 {
		t.Error("未读计数侧别错误")
	}
	if conv.PeerOf("U1") != "U2" || conv.PeerOf("U2") != "U1" {
		t.Error("对端解析错误")
	}
	if !conv.HasParticipant("U1") || !conv.HasParticipant("U2") || conv.HasParticipant("U3") {
		t.Error("参与者判定错误")
	}
}

func TestAttachmentsRoundTrip(t *testing.T) {
	// 空附件统一存 "[]"
	if got := MarshalAttachments(nil); got != "[]" {
		t.Errorf("nil 附件应存 \"[]\", 得到 %q", got)
	}
	if got := UnmarshalAttachments(""); len(got) != 0 {
		t.Errorf("空串应还原为空列表, 得到 %v", got)
	}

	attachments := []Attachment{{
		Url:      "https://files.example.com/a.jpg",
		FileType: "image/jpeg",
		FileName: "a.jpg",
		FileSize: "1.5MB",
	}}
	restored := UnmarshalAttachments(MarshalAttachments(attachments))
	if len(restored) != 1 || restored[0].Url != attachments[0].Url {
		t.Errorf("附件往返失败: %v", restored)
	}
}
