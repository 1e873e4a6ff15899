// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package subnet derives the IPv6 network hierarchy of a node from the
// cluster-wide base network and the node's hardware address.
//
// The hardware address is placed right behind the base prefix, which gives
// every node its own network (base prefix + 48 bits). That node network is
// then dissected with fixed prefix lengths:
//
//   node network (base+48)
//   ├── host network (lower half, base+49)
//   │   ├── VIP block (first /123)
//   │   └── cluster-interface block (second /123)
//   │       └── 8x /126, one per cluster-facing interface
//   └── pod network (upper half, base+49)
//
// Derivation is a pure function: the same input always gives the same
// hierarchy and the input network is never modified.
package subnet
