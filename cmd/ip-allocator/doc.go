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

// ip-allocator bootstraps the network identity of a node: it derives the
// node IPv6 networks from the hardware address of the machine, claims
// a cluster-unique IPv4 address in etcd and writes networkd units and
// option files for the rest of the node bootstrap.
//
// Usage:
//
//	ip-allocator run <machine-identity>   full bootstrap
//	ip-allocator derive                   print the derived networks
//	ip-allocator show [machine-identity]  print existing allocations
package main
