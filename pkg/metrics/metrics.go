// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// mingleNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	mingleNamespace = "mingle"

	// 以下为当前使用的通用标签名。
	directiveLabelName = "directive"
	reasonLabelName    = "reason"
	transportLabelName = "transport"
)

var (
	// ConnectionsTotal 统计自启动以来接入的连接总数，按传输类型区分。
	ConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mingleNamespace,
			Name:      "connections_total",
			Help:      "number of accepted client connections since start",
		}, []string{transportLabelName})

	// WaitingClients 为当前等待配对的客户端数量。
	WaitingClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mingleNamespace,
			Name:      "waiting_clients",
			Help:      "number of clients currently waiting for a partner",
		})

	// ActivePairs 为当前处于活跃状态的配对会话数量。
	ActivePairs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mingleNamespace,
			Name:      "active_pairs",
			Help:      "number of currently active chat pairs",
		})

	// RelayedLines 统计在配对双方之间转发的消息行总数。
	RelayedLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: mingleNamespace,
			Name:      "relayed_lines_total",
			Help:      "number of chat lines relayed between paired clients",
		})

	// Directives 统计客户端发出的各类指令次数。
	Directives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mingleNamespace,
			Name:      "directives_total",
			Help:      "number of recognized client directives",
		}, []string{directiveLabelName})

	// PairsEnded 统计配对会话结束的次数，按结束原因区分。
	PairsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mingleNamespace,
			Name:      "pairs_ended_total",
			Help:      "number of pairs ended, partitioned by reason",
		}, []string{reasonLabelName})

	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标。
// 通常应在 init 函数中调用。
func Register(r prometheus.Registerer) {
	r.MustRegister(ConnectionsTotal)
	r.MustRegister(WaitingClients)
	r.MustRegister(ActivePairs)
	r.MustRegister(RelayedLines)
	r.MustRegister(Directives)
	r.MustRegister(PairsEnded)
	metricRegisterer = r
}
