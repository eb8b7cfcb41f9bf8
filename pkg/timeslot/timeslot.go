// Package timeslot 提供 HH:MM 时间与时段处理工具
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay 一天的分钟数
const MinutesPerDay = 1440

// SliceMinutes 求解切片长度（分钟）
const SliceMinutes = 30

// NormHHMM 归一化 HH:MM 字符串
// 接受 "H"、"H:M"、"HH:MM"，容忍 '.' 和空格分隔符；输出零填充的 "HH:MM"。
// 无法解析时返回空字符串。
func NormHHMM(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", ":")
	if s == "" {
		return ""
	}
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		hh, err1 := strconv.Atoi(parts[0])
		mm, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return ""
		}
		return fmt.Sprintf("%02d:%02d", hh, mm)
	}
	hh, err := strconv.Atoi(s)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%02d:00", hh)
}

// ToMinutes 将 "HH:MM" 转为当日分钟数
func ToMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("无效的时间格式: %q", hhmm)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("无效的小时: %q", hhmm)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("无效的分钟: %q", hhmm)
	}
	return hh*60 + mm, nil
}

// FromMinutes 将当日分钟数转为 "HH:MM"
func FromMinutes(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ValidInterval 检查分钟区间是否有效：0 <= start < end <= 1440
func ValidInterval(start, end int) bool {
	return 0 <= start && start < end && end <= MinutesPerDay
}

// Contains 判断 slot 是否包含 shift（闭端点）
func Contains(slotStart, slotEnd, shiftStart, shiftEnd int) bool {
	return slotStart <= shiftStart && shiftEnd <= slotEnd
}

// Overlaps 判断两个半开区间 [start, end) 是否重叠
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return !(aEnd <= bStart || bEnd <= aStart)
}

// Slices 将 [start, end) 按 30 分钟切片，末片可能不足 30 分钟
// 返回每个切片的 [start, end) 分钟对。
func Slices(start, end int) [][2]int {
	var out [][2]int
	for t := start; t < end; {
		t2 := t + SliceMinutes
		if t2 > end {
			t2 = end
		}
		out = append(out, [2]int{t, t2})
		t = t2
	}
	return out
}
