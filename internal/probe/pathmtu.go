package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"pathcompare/internal/logger"
)

const (
	icmpHdrSize      = 8
	minIP4HeaderSize = 20
)

// ErrDiscoverUnsupported 当前环境无法执行路径MTU探测（通常是权限不足）
var ErrDiscoverUnsupported = errors.New("路径MTU探测在当前环境不可用")

// Discoverer 路径MTU探测器
// 通过二分不同大小的ICMP Echo载荷，找出目标可应答的最大报文尺寸。
// 未设置DF位，中间链路分片时测得的是可达上限而非严格的路径MTU。
type Discoverer struct {
	MinSize int           // 二分下界（IP报文总长）
	MaxSize int           // 二分上界（IP报文总长）
	Timeout time.Duration // 单包应答超时
}

// NewDiscoverer 创建路径MTU探测器
func NewDiscoverer(minSize, maxSize int, timeout time.Duration) *Discoverer {
	return &Discoverer{
		MinSize: minSize,
		MaxSize: maxSize,
		Timeout: timeout,
	}
}

// Discover 探测目标的路径报文上限（IP报文总长，字节）
// 权限不足或下界尺寸都无应答时返回 ErrDiscoverUnsupported，调用方记为 unknown
func (d *Discoverer) Discover(ctx context.Context, target string) (int, error) {
	addr, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return PathMTUUnknown, fmt.Errorf("解析目标地址失败: %w", err)
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		// raw socket 需要特权，失败按不支持处理
		logger.Debugf("打开ICMP socket失败，跳过路径MTU探测: %v", err)
		return PathMTUUnknown, ErrDiscoverUnsupported
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	seq := 0

	probe := func(size int) bool {
		seq++
		return d.echoOnce(ctx, conn, addr, id, seq, size)
	}

	// 下界都不通则无法二分
	if !probe(d.MinSize) {
		logger.Debugf("路径MTU探测: %s 对 %d 字节无应答", target, d.MinSize)
		return PathMTUUnknown, ErrDiscoverUnsupported
	}

	lo, hi := d.MinSize, d.MaxSize
	for lo < hi {
		if ctx.Err() != nil {
			break
		}
		mid := (lo + hi + 1) / 2
		if probe(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	logger.Debugf("路径MTU探测: %s 可达上限 %d 字节", target, lo)
	return lo, nil
}

// echoOnce 发送指定总长的Echo请求并等待匹配的应答
func (d *Discoverer) echoOnce(ctx context.Context, conn *icmp.PacketConn, addr *net.IPAddr, id, seq, size int) bool {
	payloadLen := size - minIP4HeaderSize - icmpHdrSize
	if payloadLen < 0 {
		payloadLen = 0
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: make([]byte, payloadLen),
		},
	}

	wire, err := msg.Marshal(nil)
	if err != nil {
		return false
	}

	if _, err := conn.WriteTo(wire, addr); err != nil {
		return false
	}

	deadline := time.Now().Add(d.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, d.MaxSize+minIP4HeaderSize)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return false
		}
		if peer.String() != addr.String() {
			continue
		}

		reply, err := icmp.ParseMessage(ipv4.ICMPTypeEcho.Protocol(), buf[:n])
		if err != nil {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		if echo.ID == id && echo.Seq == seq {
			return true
		}
	}
}
